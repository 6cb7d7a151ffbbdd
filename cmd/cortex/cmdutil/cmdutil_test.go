package cmdutil_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
)

var _ = Describe("ValidateFormat", func() {
	DescribeTable("formats",
		func(format string, valid bool) {
			err := cmdutil.ValidateFormat(format)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(ContainSubstring("invalid format")))
			}
		},
		Entry("table", "table", true),
		Entry("json", "json", true),
		Entry("markdown", "markdown", true),
		Entry("csv", "csv", false),
		Entry("empty", "", false),
	)
})

var _ = Describe("MarkdownTable", func() {
	It("formats a titled table and escapes pipes", func() {
		md := cmdutil.MarkdownTable("Pairs", []string{"A", "B"}, [][]string{{"x|y", "z"}})
		Expect(md).To(Equal("## Pairs\n\n| A | B |\n| --- | --- |\n| x\\|y | z |\n"))
	})

	It("marks empty tables", func() {
		Expect(cmdutil.MarkdownTable("", []string{"A"}, nil)).To(Equal("_none_\n"))
	})
})

var _ = Describe("WriteRows", func() {
	It("writes raw markdown to a non-terminal", func() {
		out := &bytes.Buffer{}
		Expect(cmdutil.WriteRows(out, cmdutil.FormatMarkdown, "Scans", []string{"File"}, [][]string{{"a.nii"}})).To(Succeed())
		Expect(out.String()).To(HavePrefix("## Scans"))
	})

	It("prints a placeholder for an empty table", func() {
		out := &bytes.Buffer{}
		Expect(cmdutil.WriteRows(out, cmdutil.FormatTable, "Scans", []string{"File"}, nil)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("(none)"))
	})
})

var _ = Describe("WriteJSON", func() {
	It("indents", func() {
		out := &bytes.Buffer{}
		Expect(cmdutil.WriteJSON(out, map[string]int{"a": 1})).To(Succeed())
		Expect(out.String()).To(Equal("{\n  \"a\": 1\n}\n"))
	})
})
