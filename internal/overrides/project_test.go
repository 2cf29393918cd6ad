package overrides_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/velcrohq/velcro/internal/overrides"
)

// writeOverrides places an overrides.toml under dir/.velcro and returns its
// path.
func writeOverrides(dir, content string) string {
	GinkgoHelper()

	velcroDir := filepath.Join(dir, ".velcro")
	Expect(os.MkdirAll(velcroDir, 0o700)).To(Succeed())

	path := filepath.Join(velcroDir, "overrides.toml")
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

var _ = Describe("ProjectStore", func() {
	var store *overrides.ProjectStore

	BeforeEach(func() {
		store = overrides.NewProjectStore(nil)
	})

	It("answers none for everything before loading", func() {
		Expect(store.Effective("lint")).To(Equal(overrides.StateNone))
		Expect(store.FieldOverride("lint")).To(BeNil())
		Expect(store.Path()).To(BeEmpty())
	})

	Describe("include and exclude lists", func() {
		BeforeEach(func() {
			path := writeOverrides(GinkgoT().TempDir(), `
include = ["lint", "fmt-*"]
exclude = ["lint-slow", "fmt-legacy"]
`)
			store.LoadFile(path)
		})

		It("force-enables included names", func() {
			Expect(store.Effective("lint")).To(Equal(overrides.StateEnabled))
		})

		It("force-disables excluded names", func() {
			Expect(store.Effective("lint-slow")).To(Equal(overrides.StateDisabled))
		})

		It("matches glob entries", func() {
			Expect(store.Effective("fmt-go")).To(Equal(overrides.StateEnabled))
		})

		It("lets exclude win when both lists match", func() {
			Expect(store.Effective("fmt-legacy")).To(Equal(overrides.StateDisabled))
		})

		It("answers none for unlisted names", func() {
			Expect(store.Effective("guard")).To(Equal(overrides.StateNone))
		})
	})

	Describe("field overrides", func() {
		It("decodes per-handler matcher, timeout, and env", func() {
			path := writeOverrides(GinkgoT().TempDir(), `
[handlers.lint]
matcher = "Write|Edit"
timeout = "30s"

[handlers.lint.env]
LINT_LEVEL = "strict"
`)
			store.LoadFile(path)

			fo := store.FieldOverride("lint")
			Expect(fo).NotTo(BeNil())
			Expect(fo.Matcher).To(HaveValue(Equal("Write|Edit")))
			Expect(fo.Timeout).To(HaveValue(Equal(30 * time.Second)))
			Expect(fo.Env).To(HaveKeyWithValue("LINT_LEVEL", "strict"))
		})

		It("returns nil for handlers without overrides", func() {
			path := writeOverrides(GinkgoT().TempDir(), `
[handlers.lint]
matcher = "Write"
`)
			store.LoadFile(path)

			Expect(store.FieldOverride("guard")).To(BeNil())
		})
	})

	Describe("discovery", func() {
		It("finds the override file from a nested working directory", func() {
			root := GinkgoT().TempDir()
			path := writeOverrides(root, `include = ["lint"]`)

			nested := filepath.Join(root, "src", "pkg", "deep")
			Expect(os.MkdirAll(nested, 0o700)).To(Succeed())

			store.LoadFrom(nested)

			Expect(store.Path()).To(Equal(path))
			Expect(store.Effective("lint")).To(Equal(overrides.StateEnabled))
		})

		It("stays empty when no ancestor carries overrides", func() {
			store.LoadFrom(GinkgoT().TempDir())

			Expect(store.Path()).To(BeEmpty())
			Expect(store.Effective("lint")).To(Equal(overrides.StateNone))
		})
	})

	Describe("malformed files", func() {
		It("ignores a file that does not parse", func() {
			path := writeOverrides(GinkgoT().TempDir(), `include = [unterminated`)
			store.LoadFile(path)

			Expect(store.Path()).To(BeEmpty())
			Expect(store.Effective("lint")).To(Equal(overrides.StateNone))
		})
	})
})
