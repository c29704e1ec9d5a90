package llm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StripCodeFence", func() {
	const bare = `{"hospital_name": "City Hospital", "total_amount": 12500}`

	DescribeTable("unwraps model answers",
		func(input string, expected string) {
			Expect(StripCodeFence(input)).To(Equal(expected))
		},
		Entry("bare JSON", bare, bare),
		Entry("bare JSON with whitespace", "\n  "+bare+"  \n", bare),
		Entry("fenced with json tag", "```json\n"+bare+"\n```", bare),
		Entry("fenced without tag", "```\n"+bare+"\n```", bare),
		Entry("fenced multi-line body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"),
		Entry("single line fence", "```json "+bare+"```", bare),
		Entry("plain text", "bill", "bill"),
		Entry("empty", "   ", ""),
	)
})
