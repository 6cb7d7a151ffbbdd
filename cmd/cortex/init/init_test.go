package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/cortex/cmd/cortex/init"
	"github.com/papercomputeco/cortex/pkg/config"
)

func loadConfig(dir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(dir, ".cortex", "config.toml"))
	Expect(err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	Expect(toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}

func runInit(args ...string) (string, error) {
	cmd := initcmder.NewInitCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "cortex-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .cortex directory with a default config", func() {
		out, err := runInit()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Initialized .cortex directory"))

		info, err := os.Stat(filepath.Join(tmpDir, ".cortex"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Storage.SQLitePath).To(Equal("cortex.db"))
		Expect(cfg.API.Listen).To(Equal(":8081"))
		Expect(cfg.Ingest.Workers).To(Equal(uint(3)))
	})

	It("keeps other files and existing settings when already initialized", func() {
		dir := filepath.Join(tmpDir, ".cortex")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		statePath := filepath.Join(dir, "watch.json")
		Expect(os.WriteFile(statePath, []byte(`{"files":{}}`), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[storage]\ndriver = \"inmemory\"\n"), 0o644)).To(Succeed())

		_, err := runInit()
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"files":{}}`))
		Expect(loadConfig(tmpDir).Storage.Driver).To(Equal("inmemory"))
	})

	DescribeTable("--preset with deployment presets",
		func(preset, driver, vectors string) {
			_, err := runInit("--preset", preset)
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Version).To(Equal(config.CurrentV))
			Expect(cfg.Storage.Driver).To(Equal(driver))
			Expect(cfg.VectorStore.Provider).To(Equal(vectors))
		},
		Entry("postgis", "postgis", "postgres", "qdrant"),
		Entry("sqlite", "sqlite", "sqlite", "sqlite-vec"),
		Entry("inmemory", "inmemory", "inmemory", "none"),
	)

	It("rejects unknown preset names", func() {
		_, err := runInit("--preset", "mysql")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))

		_, statErr := os.Stat(filepath.Join(tmpDir, ".cortex"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes remote config.toml", func() {
			remoteCfg := `version = 0

[storage]
driver = "postgres"
postgres_dsn = "postgres://scans@db:5432/cortex"
srid = 4326

[api]
listen = ":9090"
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			_, err := runInit("--preset", server.URL+"/config.toml")
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Storage.Driver).To(Equal("postgres"))
			Expect(cfg.Storage.SRID).To(Equal(4326))
			Expect(cfg.API.Listen).To(Equal(":9090"))
		})

		It("fails on a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			_, err := runInit("--preset", server.URL+"/missing.toml")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unexpected status"))
		})
	})
})
