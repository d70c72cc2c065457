package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mudler/xlog"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/detection"
	"github.com/dshills/agriguard/internal/redact"
)

const (
	ServiceName    = "agriguard-advisory"
	ServiceVersion = "1.0.0"

	// DefaultTimeout bounds the handling of one request.
	DefaultTimeout = 60 * time.Second
)

// ErrBadRequest marks request payloads that cannot be handled. Replies carry code 400.
var ErrBadRequest = errors.New("bad request")

// Lookuper resolves a single label.
type Lookuper interface {
	Lookup(ctx context.Context, label string) (advisory.Record, error)
}

// Options configures the NATS service.
type Options struct {
	URL           string
	Timeout       time.Duration
	MinConfidence float64
}

// Ingest is a running NATS micro service answering advisory requests.
type Ingest struct {
	nc  *nats.Conn
	svc micro.Service
}

// Start connects to NATS and registers the lookup and detections endpoints.
func Start(svc *advisory.Service, opts Options) (*Ingest, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = detection.DefaultMinConfidence
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(ServiceName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				xlog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			xlog.Info("NATS reconnected", "url", redact.Secrets(c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", redact.Secrets(opts.URL), err)
	}

	ms, err := micro.AddService(nc, micro.Config{
		Name:        ServiceName,
		Version:     ServiceVersion,
		Description: "Pest advisory lookups and detection reports",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("registering NATS service: %w", err)
	}

	endpoints := map[string]func(context.Context, []byte) ([]byte, error){
		"lookup": func(ctx context.Context, data []byte) ([]byte, error) {
			return HandleLookup(ctx, svc, data)
		},
		"detections": func(ctx context.Context, data []byte) ([]byte, error) {
			return HandleDetections(ctx, svc, data, opts.MinConfidence)
		},
	}
	group := ms.AddGroup("agriguard")
	for name, fn := range endpoints {
		if err := group.AddEndpoint(name, handler(name, fn, opts.Timeout)); err != nil {
			_ = ms.Stop()
			nc.Close()
			return nil, fmt.Errorf("adding endpoint %s: %w", name, err)
		}
	}

	xlog.Info("NATS service started", "name", ServiceName, "url", redact.Secrets(opts.URL))
	return &Ingest{nc: nc, svc: ms}, nil
}

// Stop unregisters the service and drains the connection.
func (i *Ingest) Stop() error {
	err := i.svc.Stop()
	if derr := i.nc.Drain(); derr != nil && err == nil {
		err = derr
	}
	return err
}

// HandleLookup answers a lookup request whose payload is the raw label.
func HandleLookup(ctx context.Context, svc Lookuper, data []byte) ([]byte, error) {
	rec, err := svc.Lookup(ctx, string(data))
	if errors.Is(err, advisory.ErrInvalidLabel) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// HandleDetections resolves a JSON detection batch into a report.
func HandleDetections(ctx context.Context, adv detection.Advisor, data []byte, minConfidence float64) ([]byte, error) {
	var batch detection.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: decoding detection batch: %w", ErrBadRequest, err)
	}
	report, err := detection.Resolve(ctx, adv, batch, minConfidence)
	if errors.Is(err, detection.ErrInvalidBatch) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(report)
}

func handler(name string, fn func(context.Context, []byte) ([]byte, error), timeout time.Duration) micro.Handler {
	return micro.HandlerFunc(func(req micro.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		out, err := fn(ctx, req.Data())
		if err != nil {
			code := "500"
			if errors.Is(err, ErrBadRequest) {
				code = "400"
			}
			xlog.Warn("NATS request failed", "endpoint", name, "code", code, "error", redact.Error(err))
			if rerr := req.Error(code, redact.Error(err), nil); rerr != nil {
				xlog.Error("replying to NATS request", "endpoint", name, "error", rerr)
			}
			return
		}
		if err := req.Respond(out); err != nil {
			xlog.Error("replying to NATS request", "endpoint", name, "error", err)
		}
	})
}
