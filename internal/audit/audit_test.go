package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/velcrohq/velcro/internal/aggregator"
	"github.com/velcrohq/velcro/internal/audit"
	"github.com/velcrohq/velcro/internal/engine"
	"github.com/velcrohq/velcro/pkg/hook"
)

func readEntries(path string) []audit.Entry {
	GinkgoHelper()

	f, err := os.Open(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	var entries []audit.Entry

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry audit.Entry
		Expect(json.Unmarshal(scanner.Bytes(), &entry)).To(Succeed())
		entries = append(entries, entry)
	}

	Expect(scanner.Err()).NotTo(HaveOccurred())

	return entries
}

var _ = Describe("Log", func() {
	var (
		logPath string
		fixed   time.Time
		log     *audit.Log
		evt     *hook.Event
	)

	BeforeEach(func() {
		logPath = filepath.Join(GinkgoT().TempDir(), "audit", "trail.jsonl")
		fixed = time.Date(2026, 8, 1, 15, 30, 0, 0, time.UTC)
		log = audit.NewLog(logPath, nil,
			audit.WithTimeFunc(func() time.Time { return fixed }))
		evt = &hook.Event{
			HookEventName: hook.EventPreToolUse,
			SessionID:     "sess-audit",
			ToolName:      "Bash",
			CWD:           "/work/repo",
		}
	})

	It("appends one JSONL entry per dispatch", func() {
		exitCode := 2
		decision := &aggregator.Decision{
			Blocked: true,
			Reason:  "protected file",
			Results: []*engine.Result{
				{
					HandlerName: "guard",
					State:       engine.StateBlocked,
					Blocked:     true,
					ExitCode:    &exitCode,
					Duration:    120 * time.Millisecond,
				},
				{
					HandlerName: "lint",
					State:       engine.StateSuccess,
					Success:     true,
					Duration:    40 * time.Millisecond,
				},
			},
		}

		Expect(log.Append(evt, decision)).To(Succeed())
		Expect(log.Append(evt, &aggregator.Decision{})).To(Succeed())

		entries := readEntries(logPath)
		Expect(entries).To(HaveLen(2))

		first := entries[0]
		Expect(first.ID).NotTo(BeEmpty())
		Expect(first.Timestamp).To(Equal(fixed))
		Expect(first.HookEvent).To(Equal(hook.EventPreToolUse))
		Expect(first.SessionID).To(Equal("sess-audit"))
		Expect(first.ToolName).To(Equal("Bash"))
		Expect(first.Blocked).To(BeTrue())
		Expect(first.Reason).To(Equal("protected file"))

		Expect(first.Handlers).To(HaveLen(2))
		Expect(first.Handlers[0].Name).To(Equal("guard"))
		Expect(first.Handlers[0].ExitCode).To(HaveValue(Equal(2)))
		Expect(first.Handlers[0].DurationMS).To(Equal(int64(120)))
		Expect(first.Handlers[1].Name).To(Equal("lint"))
		Expect(first.Handlers[1].Success).To(BeTrue())

		Expect(entries[1].Blocked).To(BeFalse())
	})

	It("assigns distinct IDs to entries", func() {
		Expect(log.Append(evt, &aggregator.Decision{})).To(Succeed())
		Expect(log.Append(evt, &aggregator.Decision{})).To(Succeed())

		entries := readEntries(logPath)
		Expect(entries[0].ID).NotTo(Equal(entries[1].ID))
	})

	It("does nothing when auditing is disabled", func() {
		disabled := audit.NewLog("", nil)

		Expect(disabled.Append(evt, &aggregator.Decision{})).To(Succeed())
	})
})
