package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mr1hm/disasterwatch/internal/alerts"
	"github.com/mr1hm/disasterwatch/internal/models"
)

var (
	matchEvent  eventFlags
	matchFormat string
)

func init() {
	rootCmd.AddCommand(matchesCmd)
	matchEvent.register(matchesCmd)
	matchesCmd.Flags().StringVarP(&matchFormat, "format", "f", "text", "Output format (text|json)")
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List subscriptions that would be alerted for an event",
	Long: "Resolves the event (--id for a stored one, or --type/--lat/--lng for an\n" +
		"ad-hoc one) and prints every subscription in range with its distance.\n\n" +
		"Nothing is sent. Severity is ignored here; dispatch applies the gate.",
	RunE: runMatches,
}

func runMatches(cmd *cobra.Command, args []string) error {
	rt, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	ctx := cmd.Context()
	event, err := matchEvent.resolve(ctx, cmd, rt.store)
	if err != nil {
		return err
	}

	matches, err := alerts.NewMatcher(rt.store, rt.logger).Match(ctx, event)
	if err != nil {
		return err
	}

	if matchFormat == "json" {
		return writeMatchesJSON(cmd.OutOrStdout(), matches)
	}
	return writeMatchesText(cmd.OutOrStdout(), event, matches)
}

type matchJSON struct {
	SubscriptionID int64    `json:"subscriptionId"`
	UserID         string   `json:"userId"`
	DistanceKm     float64  `json:"distanceKm"`
	RadiusKm       float64  `json:"radiusKm"`
	Channels       []string `json:"channels"`
}

func writeMatchesJSON(w io.Writer, matches []alerts.Match) error {
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchJSON{
			SubscriptionID: m.Subscription.ID,
			UserID:         m.Subscription.UserID,
			DistanceKm:     m.DistanceKm,
			RadiusKm:       m.Subscription.RadiusKm,
			Channels:       deliverable(m.Subscription),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeMatchesText(w io.Writer, event *models.DisasterEvent, matches []alerts.Match) error {
	fmt.Fprintf(w, "%s %s at %s (%.4f, %.4f): %d match(es)\n",
		event.Severity, event.Type, event.Location, event.Lat, event.Lng, len(matches))
	if len(matches) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tDISTANCE_KM\tRADIUS_KM\tCHANNELS")
	for _, m := range matches {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%v\n",
			m.Subscription.ID, m.Subscription.UserID, m.DistanceKm, m.Subscription.RadiusKm, deliverable(m.Subscription))
	}
	return tw.Flush()
}

// deliverable lists the channels that would actually be attempted.
func deliverable(sub models.AlertSubscription) []string {
	var out []string
	if sub.WantsChannel(models.ChannelEmail) && sub.EmailAddress() != "" {
		out = append(out, string(models.ChannelEmail))
	}
	if sub.WantsChannel(models.ChannelSMS) && sub.PhoneNumber() != "" {
		out = append(out, string(models.ChannelSMS))
	}
	return out
}
