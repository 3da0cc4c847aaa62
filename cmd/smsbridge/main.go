// Command smsbridge serves sendSms and readSms requests over stdin/stdout.
//
// Each input line is one JSON request:
//
//	{"id":"1","name":"readSms","arguments":{"limit":5}}
//
// and each output line is the matching JSON response. The backend is chosen
// with SMSBRIDGE_BACKEND; see internal/config for every setting.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/spachava753/smsbridge/gateway"
	"github.com/spachava753/smsbridge/internal/config"
	"github.com/spachava753/smsbridge/internal/logger"
	"github.com/spachava753/smsbridge/macos/messages"
	"github.com/spachava753/smsbridge/sms"
	"github.com/spachava753/smsbridge/smsdb"
)

const maxRequestBytes = 1 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "smsbridge:", err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "smsbridge: invalid log level:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("smsbridge stopped")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, in io.Reader, out io.Writer) error {
	transport, store, closeBackend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	sender, err := sms.NewSender(transport, log)
	if err != nil {
		return err
	}
	reader, err := sms.NewReader(store, log)
	if err != nil {
		return err
	}
	dispatcher, err := sms.NewDispatcher(sender, reader, sms.WithLogger(log))
	if err != nil {
		return err
	}

	log.Info().Str("backend", cfg.Backend).Strs("methods", dispatcher.Methods()).Msg("smsbridge ready")
	return serve(ctx, dispatcher, in, out)
}

func openBackend(cfg *config.Config) (sms.Transport, sms.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := smsdb.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, err
		}
		loopback, err := smsdb.NewLoopback(db,
			smsdb.WithCapacity(sms.EncodingGSM7, cfg.GSM7Capacity),
			smsdb.WithCapacity(sms.EncodingUCS2, cfg.UCS2Capacity))
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return loopback, db, db.Close, nil
	case config.BackendMessages:
		transport := messages.NewTransport(
			messages.WithCapacity(sms.EncodingGSM7, cfg.GSM7Capacity),
			messages.WithCapacity(sms.EncodingUCS2, cfg.UCS2Capacity))
		return transport, messages.NewStore(cfg.DBPath), noop, nil
	case config.BackendGateway:
		gw := gateway.Config{
			Address:  cfg.Gateway.Address,
			Password: cfg.Gateway.Password,
			Domain:   cfg.Gateway.Domain,
			SMTPAddr: cfg.Gateway.SMTPAddr,
			IMAPAddr: cfg.Gateway.IMAPAddr,
			Mailbox:  cfg.Gateway.Mailbox,
			Capacities: map[sms.Encoding]int{
				sms.EncodingGSM7: cfg.GSM7Capacity,
				sms.EncodingUCS2: cfg.UCS2Capacity,
			},
		}
		transport, err := gateway.NewTransport(gw)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := gateway.NewStore(gw)
		if err != nil {
			return nil, nil, nil, err
		}
		return transport, store, noop, nil
	default:
		return nil, nil, nil, fmt.Errorf("smsbridge: unknown backend %q", cfg.Backend)
	}
}

// serve answers requests one line at a time until in is exhausted or ctx is
// cancelled. A malformed line gets an INVALID_ARGUMENTS response.
func serve(ctx context.Context, d *sms.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp sms.Response
		req, err := decodeRequest(line)
		if err != nil {
			resp = sms.Failure(sms.CodeInvalidArguments, "Malformed request", err.Error())
		} else {
			resp = d.Dispatch(ctx, req)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("smsbridge: encoding response failed: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("smsbridge: writing response failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("smsbridge: reading requests failed: %w", err)
	}
	return nil
}

// decodeRequest keeps numbers as json.Number so integer limits survive
// intact.
func decodeRequest(line []byte) (sms.Request, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var req sms.Request
	if err := dec.Decode(&req); err != nil {
		return sms.Request{}, err
	}
	return req, nil
}
