package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/dotdir"
)

var _ = Describe("dotdir.Manager watch state", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns an empty state when no watch file exists", func() {
		state, err := m.LoadWatchState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Files).To(BeEmpty())
	})

	It("round-trips recorded files", func() {
		scanPath := filepath.Join(tmpDir, "sub-01.json")
		Expect(os.WriteFile(scanPath, []byte(`{}`), 0o600)).To(Succeed())
		info, err := os.Stat(scanPath)
		Expect(err).NotTo(HaveOccurred())

		state := &dotdir.WatchState{}
		state.Record(scanPath, info, "sub-01.nii.gz")
		Expect(m.SaveWatchState(state, tmpDir)).To(Succeed())

		loaded, err := m.LoadWatchState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Seen(scanPath, info)).To(BeTrue())
		Expect(loaded.Files[scanPath].ScanFile).To(Equal("sub-01.nii.gz"))
	})

	It("treats a modified file as unseen", func() {
		scanPath := filepath.Join(tmpDir, "sub-01.json")
		Expect(os.WriteFile(scanPath, []byte(`{}`), 0o600)).To(Succeed())
		info, err := os.Stat(scanPath)
		Expect(err).NotTo(HaveOccurred())

		state := &dotdir.WatchState{}
		state.Record(scanPath, info, "sub-01.nii.gz")

		Expect(os.WriteFile(scanPath, []byte(`{"scan":{}}`), 0o600)).To(Succeed())
		changed, err := os.Stat(scanPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Seen(scanPath, changed)).To(BeFalse())
	})

	It("rejects a nil state", func() {
		Expect(m.SaveWatchState(nil, tmpDir)).To(MatchError(ContainSubstring("nil watch state")))
	})

	It("rejects corrupt watch files", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "watch.json"), []byte("{"), 0o600)).To(Succeed())
		_, err := m.LoadWatchState(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("parsing watch state")))
	})
})
