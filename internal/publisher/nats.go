package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

const DefaultPrefix = "tripnav"

// conn is the slice of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	nc          *nats.Conn
	conn        conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	logger      *slog.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.OrDefault(logger).With(slog.String("component", "nats"))
	nc, err := nats.Connect(url,
		nats.Name("tripnav"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
				return
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := newPublisher(nc, prefix, logSubjects, m, logger)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, prefix string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NATSPublisher{
		conn:        c,
		prefix:      prefix,
		logSubjects: logSubjects,
		metrics:     m,
		logger:      logging.OrDefault(logger),
	}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// EventSubject is <prefix>.<userId>.<tripId>.<eventType>.
func (p *NATSPublisher) EventSubject(ev journey.Event) string {
	return strings.Join([]string{
		p.prefix,
		subjectToken(ev.UserID),
		subjectToken(ev.TripID),
		subjectToken(strings.ToLower(string(ev.Type))),
	}, ".")
}

// PublishEvent JSON-encodes ev onto its event subject.
func (p *NATSPublisher) PublishEvent(ctx context.Context, ev journey.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.publishJSON(p.EventSubject(ev), ev)
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	start := time.Now()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.logger.Debug("nats publish", slog.String("subject", subject))
	}
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
