package storage_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/pkg/storage"
)

var _ = Describe("Level", func() {
	DescribeTable("ParseLevel",
		func(input string, expected storage.Level) {
			level, err := storage.ParseLevel(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(expected))
		},
		Entry("empty string", "", storage.Native()),
		Entry("native keyword", "native", storage.Native()),
		Entry("native keyword in caps", "NATIVE", storage.Native()),
		Entry("zero", "0", storage.LevelOf(0)),
		Entry("padded integer", " 3 ", storage.LevelOf(3)),
	)

	DescribeTable("ParseLevel rejects",
		func(input string) {
			_, err := storage.ParseLevel(input)
			Expect(err).To(MatchError(ContainSubstring("invalid level of detail")))
		},
		Entry("negative", "-1"),
		Entry("fraction", "1.5"),
		Entry("word", "coarse"),
	)

	It("distinguishes native from level 0", func() {
		Expect(storage.Native()).NotTo(Equal(storage.LevelOf(0)))

		n, ok := storage.LevelOf(0).Int()
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(0))

		_, ok = storage.Native().Int()
		Expect(ok).To(BeFalse())
	})

	It("encodes native as JSON null", func() {
		data, err := json.Marshal(map[string]storage.Level{"native": storage.Native(), "two": storage.LevelOf(2)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"native":null,"two":2}`))

		var decoded struct {
			Level storage.Level `json:"level"`
		}
		Expect(json.Unmarshal([]byte(`{"level":null}`), &decoded)).To(Succeed())
		Expect(decoded.Level.IsNative()).To(BeTrue())
		Expect(json.Unmarshal([]byte(`{"level":-2}`), &decoded)).NotTo(Succeed())
	})

	It("scans SQL values", func() {
		var level storage.Level
		Expect(level.Scan(nil)).To(Succeed())
		Expect(level.IsNative()).To(BeTrue())

		Expect(level.Scan(int64(4))).To(Succeed())
		Expect(level).To(Equal(storage.LevelOf(4)))

		Expect(level.Scan("4")).To(MatchError(ContainSubstring("cannot scan")))
	})

	It("produces SQL values", func() {
		v, err := storage.Native().Value()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNil())

		v, err = storage.LevelOf(2).Value()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(int64(2)))
	})

	It("sorts native first then ascending", func() {
		levels := []storage.Level{storage.LevelOf(2), storage.Native(), storage.LevelOf(0), storage.LevelOf(1)}
		storage.SortLevels(levels)
		Expect(levels).To(Equal([]storage.Level{storage.Native(), storage.LevelOf(0), storage.LevelOf(1), storage.LevelOf(2)}))
	})
})
