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

func ListCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your negotiations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusFlag, _ := cmd.Flags().GetString("status")

			var opts store.ListOptions
			if statusFlag != "" {
				status, err := domain.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				opts.Status = &status
			}

			return withSession(cmd, open, func(ctx context.Context, s *store.Store, out io.Writer) error {
				items, err := s.List(ctx, opts)
				if err != nil {
					return fmt.Errorf("failed to list negotiations: %w", err)
				}

				views := make([]store.View, 0, len(items))
				for _, n := range items {
					if view, ok := s.View(n.ID, now()); ok {
						views = append(views, view)
					}
				}
				return printList(out, views)
			})
		},
	}
	cmd.Flags().String("status", "", "Filter by status (active, accepted, rejected, expired, cancelled, completed)")
	return cmd
}

func ShowCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show [negotiation-id]",
		Short: "Show a negotiation and its offer history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withSession(cmd, open, func(ctx context.Context, s *store.Store, out io.Writer) error {
				if _, err := s.GetOne(ctx, id); err != nil {
					return fmt.Errorf("failed to load negotiation: %w", err)
				}
				return showView(out, s, id)
			})
		},
	}
}

func CreateCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [vehicle-id] [amount]",
		Short: "Open a negotiation on a vehicle with your first offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := parseID(args[0])
			if err != nil {
				return err
			}
			currencyFlag, _ := cmd.Flags().GetString("currency")
			amount, err := parseAmount(args[1], currencyFlag)
			if err != nil {
				return err
			}
			message, _ := cmd.Flags().GetString("message")

			return withSession(cmd, open, func(ctx context.Context, s *store.Store, out io.Writer) error {
				n, err := s.CreateNegotiation(ctx, vehicleID, amount, optional(message))
				if err != nil {
					return fmt.Errorf("failed to create negotiation: %w", err)
				}
				fmt.Fprintf(out, "✓ Opened negotiation %s\n", n.ID)
				return showView(out, s, n.ID)
			})
		},
	}
	cmd.Flags().String("currency", "", "ISO 4217 currency (defaults to the vehicle's)")
	cmd.Flags().StringP("message", "m", "", "Message to the dealer")
	return cmd
}

func OfferCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer [negotiation-id] [amount]",
		Short: "Submit a counter-offer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			currencyFlag, _ := cmd.Flags().GetString("currency")
			amount, err := parseAmount(args[1], currencyFlag)
			if err != nil {
				return err
			}
			message, _ := cmd.Flags().GetString("message")

			return withSession(cmd, open, func(ctx context.Context, s *store.Store, out io.Writer) error {
				n, err := s.SubmitOffer(ctx, id, amount, optional(message))
				if err != nil {
					return fmt.Errorf("failed to submit offer: %w", err)
				}
				current, _ := n.CurrentOffer()
				fmt.Fprintf(out, "✓ Offered %s\n", current.Amount)
				return showView(out, s, id)
			})
		},
	}
	cmd.Flags().String("currency", "", "ISO 4217 currency (defaults to the negotiation's)")
	cmd.Flags().StringP("message", "m", "", "Message to the other party")
	return cmd
}

func AcceptCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "accept [negotiation-id]",
		Short: "Accept the other party's current offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return terminal(cmd, open, args[0], "accept", func(ctx context.Context, s *store.Store, id uuid.UUID) (domain.Negotiation, error) {
				return s.AcceptOffer(ctx, id)
			})
		},
	}
}

func RejectCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject [negotiation-id]",
		Short: "Reject the negotiation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return terminal(cmd, open, args[0], "reject", func(ctx context.Context, s *store.Store, id uuid.UUID) (domain.Negotiation, error) {
				return s.RejectNegotiation(ctx, id, optional(reason))
			})
		},
	}
	cmd.Flags().StringP("reason", "r", "", "Reason shown to the other party")
	return cmd
}

func CancelCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [negotiation-id]",
		Short: "Withdraw your negotiation (buyers only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return terminal(cmd, open, args[0], "cancel", func(ctx context.Context, s *store.Store, id uuid.UUID) (domain.Negotiation, error) {
				return s.CancelNegotiation(ctx, id)
			})
		},
	}
}
