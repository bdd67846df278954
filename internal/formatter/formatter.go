// package formatter renders accounts, credentials, events and session state
// for the CLI (aligned text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/session"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// timeOrDash renders a timestamp, or "-" for the zero value.
func timeOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatAccounts renders accounts as an aligned terminal table.
func FormatAccounts(accounts []models.Account) string {
	if len(accounts) == 0 {
		return dimStyle.Render("no accounts") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDISPLAY NAME\tLINKED")
	for _, a := range accounts {
		linked := make([]string, 0, len(a.ExternalAuths))
		for _, ext := range a.ExternalAuths {
			linked = append(linked, ext.Type)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.DisplayName, strings.Join(linked, ","))
	}
	w.Flush()
	return buf.String()
}

// FormatDeviceCredentials renders the platform's device credential listing.
func FormatDeviceCredentials(creds []models.DeviceCredentialInfo) string {
	if len(creds) == 0 {
		return dimStyle.Render("no device credentials registered") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE ID\tCREATED\tLAST ACCESS\tLOCATION")
	for _, c := range creds {
		created, lastAccess, location := "-", "-", "-"
		if c.Created != nil {
			created = timeOrDash(c.Created.DateTime)
			location = c.Created.Location
		}
		if c.LastAccess != nil {
			lastAccess = timeOrDash(c.LastAccess.DateTime)
			if c.LastAccess.Location != "" {
				location = c.LastAccess.Location
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.DeviceID, created, lastAccess, location)
	}
	w.Flush()
	return buf.String()
}

// FormatStoredCredentials renders the local credential mirror. Secrets are
// never included.
func FormatStoredCredentials(creds []*models.StoredCredential) string {
	if len(creds) == 0 {
		return dimStyle.Render("no stored credentials") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tDEVICE ID\tLABEL\tUPDATED")
	for _, c := range creds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.SubjectID(), c.ID(), c.Label(), timeOrDash(c.UpdatedAt()))
	}
	w.Flush()
	return buf.String()
}

// FormatEvents renders the auth event log, newest first as given.
func FormatEvents(events []models.AuthEvent) string {
	if len(events) == 0 {
		return dimStyle.Render("no recorded events") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tSUBJECT\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", timeOrDash(e.CreatedAt), e.Kind, e.SubjectID, e.Detail)
	}
	w.Flush()
	return buf.String()
}

// FormatFriends renders the friend list.
func FormatFriends(friends []models.Friend) string {
	if len(friends) == 0 {
		return dimStyle.Render("no friends") + "\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tSTATUS\tDIRECTION\tSINCE\tFAVORITE")
	for _, f := range friends {
		fav := ""
		if f.Favorite {
			fav = "★"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.SubjectID, f.Status, f.Direction, timeOrDash(f.Created), fav)
	}
	w.Flush()
	return buf.String()
}

// FormatTokenInfo renders the verify endpoint's view of the live token.
func FormatTokenInfo(info *models.TokenInfo) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Subject:\t%s (%s)\n", info.SubjectID, info.DisplayName)
	fmt.Fprintf(w, "Client:\t%s\n", info.ClientID)
	fmt.Fprintf(w, "Auth method:\t%s\n", info.AuthMethod)
	fmt.Fprintf(w, "Expires:\t%s (in %s)\n", timeOrDash(info.ExpiresAt), (time.Duration(info.ExpiresIn) * time.Second).String())
	if info.DeviceID != "" {
		fmt.Fprintf(w, "Device:\t%s\n", info.DeviceID)
	}
	w.Flush()
	return buf.String()
}

// FormatSnapshot renders a session snapshot for the status and watch views.
func FormatSnapshot(s session.Snapshot) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", headerStyle.Render(s.State.String()))
	if s.SubjectID != "" {
		fmt.Fprintf(w, "Subject:\t%s\n", s.SubjectID)
	}
	fmt.Fprintf(w, "Exchange expiry:\t%s\n", timeOrDash(s.ExchangeExpiry))
	fmt.Fprintf(w, "Session expiry:\t%s\n", timeOrDash(s.SessionExpiry))
	fmt.Fprintf(w, "Refreshes:\t%d (restarts %d)\n", s.Refreshes, s.Restarts)
	if !s.LastRefresh.IsZero() {
		fmt.Fprintf(w, "Last refresh:\t%s\n", timeOrDash(s.LastRefresh))
	}
	if s.Err != nil {
		fmt.Fprintf(w, "Failure:\t%v\n", s.Err)
	}
	w.Flush()
	return buf.String()
}

// ExportAccountsCSV converts accounts to CSV with columns ID, DisplayName, Linked.
func ExportAccountsCSV(accounts []models.Account) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "DisplayName", "Linked"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range accounts {
		linked := make([]string, 0, len(a.ExternalAuths))
		for _, ext := range a.ExternalAuths {
			linked = append(linked, ext.Type)
		}
		if err := writer.Write([]string{a.ID, a.DisplayName, strings.Join(linked, ";")}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportAccountsJSON converts accounts to JSON, optionally indented.
func ExportAccountsJSON(accounts []models.Account, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(accounts, "", "  ")
	}
	return json.Marshal(accounts)
}

// ExportAccountsMarkdown converts accounts to a Markdown table.
func ExportAccountsMarkdown(accounts []models.Account) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Resolved accounts\n\n**Count**: %d\n\n", len(accounts)))
	buf.WriteString("| ID | Display name | Linked |\n|---|---|---|\n")
	for _, a := range accounts {
		linked := make([]string, 0, len(a.ExternalAuths))
		for _, ext := range a.ExternalAuths {
			linked = append(linked, ext.Type)
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", a.ID, a.DisplayName, strings.Join(linked, ", ")))
	}

	return buf.Bytes(), nil
}

// WriteAccountsExport writes accounts to path in the given format (json, csv,
// markdown, txt) and returns the path written. An empty path derives a name
// from the format.
func WriteAccountsExport(accounts []models.Account, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch strings.ToLower(format) {
	case "json", "":
		data, err = ExportAccountsJSON(accounts, true)
		ext = "json"
	case "csv":
		data, err = ExportAccountsCSV(accounts)
		ext = "csv"
	case "markdown", "md":
		data, err = ExportAccountsMarkdown(accounts)
		ext = "md"
	case "txt", "text":
		data, err = []byte(FormatAccounts(accounts)), nil
		ext = "txt"
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("accounts_%d.%s", time.Now().Unix(), ext)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
