package cli

import (
	"context"
	"fmt"
	"io"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type terminalFunc func(ctx context.Context, s *store.Store, id uuid.UUID) (domain.Negotiation, error)

// terminal runs one of the optimistic terminal actions. The store needs the
// negotiation cached, so it is fetched first.
func terminal(cmd *cobra.Command, open Opener, rawID, verb string, fn terminalFunc) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	return withSession(cmd, open, func(ctx context.Context, s *store.Store, out io.Writer) error {
		if _, ok := s.Negotiation(id); !ok {
			if _, err := s.GetOne(ctx, id); err != nil {
				return fmt.Errorf("failed to load negotiation: %w", err)
			}
		}

		n, err := fn(ctx, s, id)
		if err != nil {
			return fmt.Errorf("failed to %s negotiation: %w", verb, err)
		}
		fmt.Fprintf(out, "✓ Negotiation %s\n", statusColor(n.Status).Sprint(n.Status))
		return showView(out, s, id)
	})
}
