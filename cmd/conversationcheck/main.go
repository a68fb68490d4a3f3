// Command conversationcheck creates one mentee conversation record and reports
// what was stored. It is a manual smoke test of the persistence path: failures
// are printed with their trace and never retried.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/zbir99/linkdeal-app-sub001/config"
	"github.com/zbir99/linkdeal-app-sub001/db"
	"github.com/zbir99/linkdeal-app-sub001/logging"
	"github.com/zbir99/linkdeal-app-sub001/models"
	"github.com/zbir99/linkdeal-app-sub001/store"
)

type conversationCreator interface {
	Create(ctx context.Context, conversation, sessionID string, messages models.Messages, messageCount int) (*models.MenteeConversation, error)
}

// openFunc returns a creator and a function releasing its resources.
type openFunc func() (conversationCreator, func(), error)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func main() {
	conversation := flag.String("conversation", "test", "conversation label to store")
	session := flag.String("session", "test-debug", "session id to store")
	timeout := flag.Duration("timeout", 10*time.Second, "overall timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: no .env file loaded: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runCheck(ctx, os.Stdout, openStore, *conversation, *session)
}

func openStore() (conversationCreator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "load configuration")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}

	dbManager, err := db.NewDBConnection(cfg.Database.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	release := func() {
		_ = dbManager.Close()
		_ = logger.Sync()
	}

	return store.NewConversationStore(dbManager, logger.Named("check")), release, nil
}

// runCheck reports true when the record was created and read back.
func runCheck(ctx context.Context, out io.Writer, open openFunc, conversation, sessionID string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "Error: panic: %v\n", r)
			fmt.Fprintf(out, "%s\n", debug.Stack())
			ok = false
		}
	}()

	creator, release, err := open()
	if err != nil {
		reportFailure(out, err)
		return false
	}
	defer release()

	record, err := creator.Create(ctx, conversation, sessionID, models.Messages{}, 0)
	if err != nil {
		reportFailure(out, err)
		return false
	}

	messages, err := json.Marshal(record.Messages)
	if err != nil {
		reportFailure(out, errors.Wrap(err, "encode messages"))
		return false
	}

	fmt.Fprintf(out, "Created conversation with ID: %d\n", record.ID)
	fmt.Fprintf(out, "Fields: conversation=%s session_id=%s messages=%s message_count=%d\n",
		record.Conversation, record.SessionID, messages, record.MessageCount)

	return true
}

func reportFailure(out io.Writer, err error) {
	var st stackTracer
	if !errors.As(err, &st) {
		err = errors.WithStack(err)
	}

	fmt.Fprintf(out, "Error: %v\n", err)
	fmt.Fprintf(out, "%+v\n", err)
}
