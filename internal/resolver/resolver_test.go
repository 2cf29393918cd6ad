package resolver_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/velcrohq/velcro/internal/overrides"
	"github.com/velcrohq/velcro/internal/resolver"
	"github.com/velcrohq/velcro/pkg/config"
	"github.com/velcrohq/velcro/pkg/hook"
)

func preToolUseEvent(sessionID string) *hook.Event {
	return &hook.Event{
		HookEventName: hook.EventPreToolUse,
		SessionID:     sessionID,
		ToolName:      "Bash",
	}
}

func handler(name string, events ...hook.EventName) *config.Handler {
	return &config.Handler{
		Name:    name,
		Hooks:   events,
		Type:    config.HandlerTypeCommand,
		Command: "true",
	}
}

// loadProjectOverrides builds a ProjectStore from inline TOML.
func loadProjectOverrides(content string) *overrides.ProjectStore {
	GinkgoHelper()

	path := filepath.Join(GinkgoT().TempDir(), "overrides.toml")
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	store := overrides.NewProjectStore(nil)
	store.LoadFile(path)

	return store
}

var _ = Describe("Resolver", func() {
	var (
		session *overrides.SessionStore
		project *overrides.ProjectStore
	)

	BeforeEach(func() {
		session = overrides.NewSessionStore()
		project = overrides.NewProjectStore(nil)
	})

	resolve := func(handlers []*config.Handler, evt *hook.Event) []*config.Handler {
		return resolver.New(handlers, session, project, nil).Resolve(evt)
	}

	names := func(handlers []*config.Handler) []string {
		out := make([]string, len(handlers))
		for i, h := range handlers {
			out[i] = h.Name
		}

		return out
	}

	It("selects only handlers attached to the event", func() {
		handlers := []*config.Handler{
			handler("pre", hook.EventPreToolUse),
			handler("post", hook.EventPostToolUse),
			handler("both", hook.EventPreToolUse, hook.EventPostToolUse),
		}

		resolved := resolve(handlers, preToolUseEvent("s1"))

		Expect(names(resolved)).To(Equal([]string{"pre", "both"}))
	})

	It("preserves definition order", func() {
		handlers := []*config.Handler{
			handler("c", hook.EventPreToolUse),
			handler("a", hook.EventPreToolUse),
			handler("b", hook.EventPreToolUse),
		}

		resolved := resolve(handlers, preToolUseEvent("s1"))

		Expect(names(resolved)).To(Equal([]string{"c", "a", "b"}))
	})

	It("excludes handlers disabled in their definition", func() {
		disabled := handler("off", hook.EventPreToolUse)
		disabled.Disabled = true

		resolved := resolve([]*config.Handler{disabled}, preToolUseEvent("s1"))

		Expect(resolved).To(BeEmpty())
	})

	Describe("override precedence", func() {
		It("lets a project include revive a globally disabled handler", func() {
			disabled := handler("lint", hook.EventPreToolUse)
			disabled.Disabled = true
			project = loadProjectOverrides(`include = ["lint"]`)

			resolved := resolve([]*config.Handler{disabled}, preToolUseEvent("s1"))

			Expect(names(resolved)).To(Equal([]string{"lint"}))
		})

		It("lets a project exclude drop an enabled handler", func() {
			project = loadProjectOverrides(`exclude = ["lint"]`)

			resolved := resolve([]*config.Handler{handler("lint", hook.EventPreToolUse)},
				preToolUseEvent("s1"))

			Expect(resolved).To(BeEmpty())
		})

		It("lets a session disable beat a project include", func() {
			project = loadProjectOverrides(`include = ["lint"]`)
			session.Set("s1", "lint", false)

			resolved := resolve([]*config.Handler{handler("lint", hook.EventPreToolUse)},
				preToolUseEvent("s1"))

			Expect(resolved).To(BeEmpty())
		})

		It("lets a session enable beat a project exclude", func() {
			project = loadProjectOverrides(`exclude = ["lint"]`)
			session.Set("s1", "lint", true)

			resolved := resolve([]*config.Handler{handler("lint", hook.EventPreToolUse)},
				preToolUseEvent("s1"))

			Expect(names(resolved)).To(Equal([]string{"lint"}))
		})

		It("scopes session overrides to their session", func() {
			session.Set("other", "lint", false)

			resolved := resolve([]*config.Handler{handler("lint", hook.EventPreToolUse)},
				preToolUseEvent("s1"))

			Expect(names(resolved)).To(Equal([]string{"lint"}))
		})
	})

	Describe("field overrides", func() {
		It("merges project fields onto a copy, never the definition", func() {
			project = loadProjectOverrides(`
[handlers.lint]
matcher = "Write|Edit"
timeout = "45s"
`)
			original := handler("lint", hook.EventPreToolUse)
			original.Matcher = "Bash"

			resolved := resolve([]*config.Handler{original}, preToolUseEvent("s1"))

			Expect(resolved).To(HaveLen(1))
			Expect(resolved[0].Matcher).To(Equal("Write|Edit"))
			Expect(resolved[0].Timeout).To(Equal(45 * time.Second))
			Expect(resolved[0].Source).To(Equal("project-override"))

			Expect(original.Matcher).To(Equal("Bash"))
			Expect(original.Source).NotTo(Equal("project-override"))
		})

		It("returns the definition untouched when no override exists", func() {
			original := handler("lint", hook.EventPreToolUse)

			resolved := resolve([]*config.Handler{original}, preToolUseEvent("s1"))

			Expect(resolved[0]).To(BeIdenticalTo(original))
		})
	})

	It("tolerates nil override stores", func() {
		resolved := resolver.New(
			[]*config.Handler{handler("lint", hook.EventPreToolUse)},
			nil, nil, nil,
		).Resolve(preToolUseEvent("s1"))

		Expect(names(resolved)).To(Equal([]string{"lint"}))
	})
})
