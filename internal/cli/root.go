// Package cli implements the negotiate command line, a thin driver over the
// client-side negotiation store.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Session is an opened store plus whatever must be flushed when the command ends.
type Session struct {
	Store *store.Store
	Close func(ctx context.Context) error
}

// Opener builds a Session for one command invocation.
type Opener func(ctx context.Context) (*Session, error)

// NewRootCmd assembles the negotiate command tree.
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "negotiate",
		Short:         "Negotiate vehicle prices as a buyer or dealer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(ListCmd(open))
	root.AddCommand(ShowCmd(open))
	root.AddCommand(CreateCmd(open))
	root.AddCommand(OfferCmd(open))
	root.AddCommand(AcceptCmd(open))
	root.AddCommand(RejectCmd(open))
	root.AddCommand(CancelCmd(open))
	root.AddCommand(TokenCmd())
	return root
}

// withSession opens a session, runs fn and always closes the session.
func withSession(cmd *cobra.Command, open Opener, fn func(ctx context.Context, s *store.Store, out io.Writer) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if sess.Close == nil {
			return
		}
		if closeErr := sess.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close session: %w", closeErr)
		}
	}()

	return fn(ctx, sess.Store, cmd.OutOrStdout())
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}

// parseAmount leaves the currency unset when code is empty so the server
// picks the negotiation's currency.
func parseAmount(raw, code string) (domain.Money, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	m := domain.Money{Amount: amount}
	if code == "" {
		return m, nil
	}
	unit, err := domain.ParseCurrency(code)
	if err != nil {
		return domain.Money{}, err
	}
	m.Currency = unit
	return m, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func now() time.Time { return time.Now() }
