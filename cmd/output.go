package cmd

import (
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonOutput(cmd *cobra.Command) bool {
	b, _ := cmd.Flags().GetBool("json")
	return b
}

// printResult writes v as indented JSON when --json is set, otherwise the human summary.
func printResult(cmd *cobra.Command, v interface{}, human string) error {
	if !jsonOutput(cmd) {
		cmd.Println(human)
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func formatLoginStatus(accountID string, st service.LoginStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", accountID, st.Message)
	if st.MemberCount != nil {
		fmt.Fprintf(&b, " (members %d/%d", *st.MemberCount, st.MemberLimit)
		if st.SeatsRemaining != nil {
			fmt.Fprintf(&b, ", %d seats left", *st.SeatsRemaining)
		}
		b.WriteString(")")
	}
	if st.Screenshot != "" {
		fmt.Fprintf(&b, "\n  screenshot: %s", st.Screenshot)
	}
	return b.String()
}

func formatResult(accountID, message, screenshot string) string {
	if screenshot == "" {
		return fmt.Sprintf("%s: %s", accountID, message)
	}
	return fmt.Sprintf("%s: %s\n  screenshot: %s", accountID, message, screenshot)
}

func formatJob(job *schemas.InviteJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "job %s [%s] %d/%d invited, %d failed", job.ID, job.Status, job.SuccessCount, job.TotalCount, job.FailCount)
	if job.Error != "" {
		fmt.Fprintf(&b, "\n  error: %s", job.Error)
	}
	for _, o := range job.Outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(&b, "\n  %-8s %s: %s", o.Status, o.Email, o.Error)
		case o.Note != "":
			fmt.Fprintf(&b, "\n  %-8s %s (%s)", o.Status, o.Email, o.Note)
		default:
			fmt.Fprintf(&b, "\n  %-8s %s", o.Status, o.Email)
		}
	}
	return b.String()
}

// progressPrinter serializes progress lines coming from job workers.
type progressPrinter struct {
	mu  sync.Mutex
	cmd *cobra.Command
}

func (p *progressPrinter) print(jobID string, ev schemas.ProgressEvent) {
	if jsonOutput(p.cmd) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Error != "" {
		p.cmd.Printf("[%d/%d] %s %s: %s\n", ev.Index+1, ev.Total, ev.Status, ev.Address, ev.Error)
		return
	}
	p.cmd.Printf("[%d/%d] %s %s\n", ev.Index+1, ev.Total, ev.Status, ev.Address)
}
