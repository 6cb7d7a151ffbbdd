package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome     string
		origXDG      string
		origCortexDB string
		origCortexSQ string
		origCwd      string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origCortexDB = os.Getenv("CORTEX_DB")
		origCortexSQ = os.Getenv("CORTEX_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("CORTEX_DB", origCortexDB)).To(Succeed())
		Expect(os.Setenv("CORTEX_SQLITE", origCortexSQ)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	isolate := func() string {
		homeDir := GinkgoT().TempDir()
		tmpDir := GinkgoT().TempDir()

		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("CORTEX_DB", "")).To(Succeed())
		Expect(os.Setenv("CORTEX_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		return homeDir
	}

	It("returns the override unchanged", func() {
		path, err := ResolveSQLitePath("/data/scans.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/data/scans.db"))
	})

	It("prefers CORTEX_SQLITE when set", func() {
		Expect(os.Setenv("CORTEX_SQLITE", "/tmp/custom.db")).To(Succeed())
		Expect(os.Setenv("CORTEX_DB", "")).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.cortex/cortex.db when present", func() {
		homeDir := isolate()

		dbPath := filepath.Join(homeDir, ".cortex", "cortex.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("fails when no database exists", func() {
		isolate()

		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ContainSubstring("pass --sqlite")))
	})
})
