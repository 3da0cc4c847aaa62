package messages

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"

	"github.com/spachava753/smsbridge/sms"
)

const (
	messagesLiveTestFlagEnv = "SMSBRIDGE_LIVE_TEST"
	messagesLiveHandleEnv   = "SMSBRIDGE_TEST_HANDLE"
	livePollInterval        = 3 * time.Second
	liveWaitWindow          = 60 * time.Second
)

func TestLiveSendAndRead(t *testing.T) {
	if os.Getenv(messagesLiveTestFlagEnv) != "1" {
		t.Skipf("set %s=1 to run live Messages integration tests", messagesLiveTestFlagEnv)
	}
	handle := strings.TrimSpace(os.Getenv(messagesLiveHandleEnv))
	if handle == "" {
		t.Skipf("set %s to a phone number or email to message", messagesLiveHandleEnv)
	}

	store := NewStore("")
	sender, err := sms.NewSender(NewTransport(), zerolog.Nop())
	be.Err(t, err, nil)
	reader, err := sms.NewReader(store, zerolog.Nop())
	be.Err(t, err, nil)
	d, err := sms.NewDispatcher(sender, reader)
	be.Err(t, err, nil)

	resp := d.Dispatch(context.Background(), sms.Request{
		Name:      sms.MethodReadSMS,
		Arguments: sms.Arguments{sms.ArgLimit: 5},
	})
	be.Equal(t, resp.Outcome(), sms.OutcomeSuccess)

	before, err := newestSentID(store, handle)
	be.Err(t, err, nil)

	body := fmt.Sprintf("smsbridge live test %d", time.Now().UnixNano())
	resp = d.Dispatch(context.Background(), sms.Request{
		Name:      sms.MethodSendSMS,
		Arguments: sms.Arguments{sms.ArgPhoneNumber: handle, sms.ArgMessage: body},
	})
	be.Equal(t, resp.Outcome(), sms.OutcomeSuccess)

	be.Err(t, waitForNewSentMessage(store, handle, before, liveWaitWindow), nil)
}

func newestSentID(store *Store, handle string) (string, error) {
	cur, err := store.Query(context.Background(), sms.Query{
		Box:     sms.BoxSent,
		Fields:  []string{sms.FieldID},
		Address: sms.Some(handle),
		Limit:   1,
	})
	if err != nil {
		return "", err
	}
	defer cur.Close()

	if !cur.Next() {
		return "", cur.Err()
	}
	rec, err := sms.Project(cur.Record())
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func waitForNewSentMessage(store *Store, handle string, previousID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		id, err := newestSentID(store, handle)
		if err != nil {
			return err
		}
		if id != "" && id != previousID {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("new outbound message not found in %s", timeout)
		}
		time.Sleep(livePollInterval)
	}
}
