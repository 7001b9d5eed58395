package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/client"
	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/subscription"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printScheduleTable writes one row per day and one column per apartment.
func printScheduleTable(out io.Writer, s *client.Schedule) error {
	if len(s.Calendars) == 0 || s.StartDate == nil || s.EndDate == nil {
		_, err := fmt.Fprintln(out, "No apartments found.")
		return err
	}

	start, err := dates.Parse(*s.StartDate)
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := dates.Parse(*s.EndDate)
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"DATE"}
	sep := []string{"----"}
	for _, c := range s.Calendars {
		name := fmt.Sprintf("APT %d", c.Number)
		header = append(header, name)
		sep = append(sep, strings.Repeat("-", len(name)))
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, strings.Join(sep, "\t")); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for day := range dates.DaysBetween(start, end) {
		key := dates.Format(day)
		row := []string{day.Format("Mon 2006-01-02")}
		for _, c := range s.Calendars {
			row = append(row, statusLabels(c.Schedule[key]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err = fmt.Fprintf(out, "\nTotal: %d apartments\n", len(s.Calendars))
	return err
}

// statusLabels joins the labels of a day's statuses, or "-" for none.
func statusLabels(statuses []string) string {
	if len(statuses) == 0 {
		return "-"
	}
	labels := make([]string, len(statuses))
	for i, s := range statuses {
		labels[i] = apartment.Status(s).Label()
	}
	return strings.Join(labels, "/")
}

// printImportResult prints the outcome of an import in text format.
func printImportResult(out io.Writer, res *client.ImportResult) {
	if res.NotModified() {
		fmt.Fprintln(out, "Calendar not modified, nothing imported.")
		return
	}

	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	fmt.Fprintf(out, "%s apartment %d with %d bookings.\n", verb, res.Apartment, res.Bookings)
	if res.Replaced > 0 {
		fmt.Fprintf(out, "  Replaced: %d bookings\n", res.Replaced)
	}
	if res.Bundled > 0 {
		fmt.Fprintf(out, "  Bundled:  %d cleanings moved to a shared day\n", res.Bundled)
	}
}

// printSubscriptionTable prints subscriptions as a formatted table.
func printSubscriptionTable(out io.Writer, subs []*subscription.Subscription) error {
	if len(subs) == 0 {
		_, err := fmt.Fprintln(out, "No subscriptions found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tAPT\tURL\tSYNCED\tERROR"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t---\t---\t------\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, s := range subs {
		synced := "never"
		if s.SyncedAt != nil {
			synced = s.SyncedAt.Local().Format("2006-01-02 15:04")
		}
		lastErr := "-"
		if s.LastError != "" {
			lastErr = truncate(s.LastError, 30)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			s.ID, s.ApartmentNumber, truncate(s.URL, 50), synced, lastErr); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	_, err := fmt.Fprintf(out, "\nTotal: %d subscriptions\n", len(subs))
	return err
}

// printUserTable prints owners as a formatted table.
func printUserTable(out io.Writer, users []*auth.User) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(out, "No users found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "USERNAME\tID\tCREATED"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, u := range users {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.ID, u.CreatedAt.Format(time.DateOnly)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
