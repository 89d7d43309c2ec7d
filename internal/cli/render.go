package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/store"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04"

var (
	dim  = color.New(color.Faint)
	bold = color.New(color.Bold)
)

func statusColor(s domain.Status) *color.Color {
	switch s {
	case domain.StatusActive:
		return color.New(color.FgHiCyan)
	case domain.StatusAccepted, domain.StatusCompleted:
		return color.New(color.FgHiGreen)
	case domain.StatusRejected, domain.StatusCancelled:
		return color.New(color.FgHiRed)
	case domain.StatusExpired:
		return color.New(color.FgHiYellow)
	default:
		return color.New(color.Reset)
	}
}

// statusLabel renders the status, marking a cached active record whose
// expiry has passed.
func statusLabel(v store.View) string {
	label := statusColor(v.Negotiation.Status).Sprint(v.Negotiation.Status)
	if v.NeedsRefresh {
		label += color.New(color.FgHiYellow).Sprint(" (stale)")
	}
	return label
}

func printList(out io.Writer, views []store.View) error {
	if len(views) == 0 {
		fmt.Fprintln(out, dim.Sprint("No negotiations."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVEHICLE\tROLE\tSTATUS\tCURRENT OFFER\tTURN\tEXPIRES")
	for _, v := range views {
		n := v.Negotiation
		current := "-"
		if offer, ok := n.CurrentOffer(); ok {
			current = fmt.Sprintf("%s by %s", offer.Amount, offer.OfferedBy)
		}
		turn := ""
		if v.MyTurn {
			turn = bold.Sprint("yours")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Vehicle.Title, v.Party, statusLabel(v), current, turn, n.ExpiresAt.Local().Format(timeLayout))
	}
	return w.Flush()
}

func printNegotiation(out io.Writer, v store.View) error {
	n := v.Negotiation

	fmt.Fprintf(out, "%s  %s\n", bold.Sprint(n.Vehicle.Title), statusLabel(v))
	fmt.Fprintf(out, "%s %s\n", dim.Sprint("id:"), n.ID)
	fmt.Fprintf(out, "%s %s\n", dim.Sprint("asking:"), n.Vehicle.AskingPrice)
	fmt.Fprintf(out, "%s %s\n", dim.Sprint("dealer:"), partyName(n.Dealer))
	fmt.Fprintf(out, "%s %s\n", dim.Sprint("you are:"), v.Party)
	if n.AcceptedPrice != nil {
		fmt.Fprintf(out, "%s %s\n", dim.Sprint("accepted at:"), color.New(color.FgHiGreen).Sprint(n.AcceptedPrice))
	}
	if n.RejectionReason != nil {
		fmt.Fprintf(out, "%s %s\n", dim.Sprint("reason:"), *n.RejectionReason)
	}
	if n.IsActive() {
		fmt.Fprintf(out, "%s %s\n", dim.Sprint("expires:"), n.ExpiresAt.Local().Format(timeLayout))
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tBY\tAMOUNT\tAT\tMESSAGE")
	for i, offer := range n.Offers {
		message := ""
		if offer.Message != nil {
			message = *offer.Message
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, offer.OfferedBy, offer.Amount, offer.CreatedAt.Local().Format(timeLayout), message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(v.Actions) > 0 {
		names := make([]string, 0, len(v.Actions))
		for _, a := range v.Actions {
			names = append(names, string(a))
		}
		fmt.Fprintf(out, "\n%s %s\n", dim.Sprint("you can:"), strings.Join(names, ", "))
	}
	return nil
}

func partyName(p domain.PartyRef) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID.String()
}

func showView(out io.Writer, s *store.Store, id uuid.UUID) error {
	view, ok := s.View(id, now())
	if !ok {
		return fmt.Errorf("negotiation %s is not cached", id)
	}
	return printNegotiation(out, view)
}
