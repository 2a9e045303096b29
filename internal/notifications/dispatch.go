package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Message is the payload sent to every device in a multicast.
type Message struct {
	Title string
	Body  string
	Icon  string
	Link  string
}

// ErrorKind classifies the outcome for a single device.
type ErrorKind int

const (
	Delivered ErrorKind = iota
	InvalidToken
	Unregistered
	OtherFailure
)

func (k ErrorKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case InvalidToken:
		return "invalid_token"
	case Unregistered:
		return "unregistered"
	default:
		return "other"
	}
}

// SendResult is the per-token outcome of a multicast, aligned with the input.
type SendResult struct {
	Kind ErrorKind
	Err  error
}

// Gateway sends one multicast of at most multicastLimit tokens.
type Gateway interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error)
}

// Dispatcher splits a token list into gateway-sized multicasts and collects
// the tokens the gateway reports as permanently undeliverable.
type Dispatcher struct {
	gateway   Gateway
	iconURL   string
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. timeout bounds each multicast call.
func NewDispatcher(gateway Gateway, iconURL string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Dispatcher{
		gateway:   gateway,
		iconURL:   iconURL,
		batchSize: multicastLimit,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch sends title/body/link to every token and returns the tokens that
// were rejected as invalid or unregistered. An empty token list is a no-op.
//
// A failed batch does not stop the remaining batches; the batch errors are
// joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, title, body, link string) ([]string, error) {
	if len(tokens) == 0 {
		d.logger.Debug("No tokens to dispatch", "title", title)
		return nil, nil
	}

	msg := Message{Title: title, Body: body, Icon: d.iconURL, Link: link}

	var (
		invalid   []string
		errs      []error
		delivered int
	)
	for start := 0; start < len(tokens); start += d.batchSize {
		batch := tokens[start:min(start+d.batchSize, len(tokens))]

		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		results, err := d.gateway.SendMulticast(cctx, batch, msg)
		cancel()
		if err != nil {
			d.logger.Warn("Multicast failed", "title", title, "batch_size", len(batch), "error", err)
			errs = append(errs, fmt.Errorf("multicast of %d tokens: %w", len(batch), err))
			continue
		}
		if len(results) != len(batch) {
			errs = append(errs, fmt.Errorf("multicast returned %d results for %d tokens", len(results), len(batch)))
			continue
		}

		for i, r := range results {
			switch r.Kind {
			case Delivered:
				delivered++
			case InvalidToken, Unregistered:
				d.logger.Debug("Token rejected", "token", redact(batch[i]), "reason", r.Kind, "error", r.Err)
				invalid = append(invalid, batch[i])
			default:
				d.logger.Warn("Delivery failed", "token", redact(batch[i]), "error", r.Err)
			}
		}
	}

	d.logger.Info("Notification dispatched",
		"title", title, "tokens", len(tokens), "delivered", delivered, "invalid", len(invalid))
	return invalid, errors.Join(errs...)
}
