package claim

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Document", func() {
	It("serializes bills with a type tag and an items list", func() {
		amount := 12500.0
		date := NewDate(2024, time.April, 10)
		data, err := json.Marshal(Bill{HospitalName: strPtr("City Hospital"), TotalAmount: &amount, DateOfService: &date})
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{"type":"bill","hospital_name":"City Hospital","total_amount":12500,"date_of_service":"2024-04-10","items":[]}`))
	})

	It("serializes the zero value of every type with nulls", func() {
		data, err := json.Marshal([]Document{DischargeSummary{}, IDCard{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`[
			{"type":"discharge_summary","patient_name":null,"diagnosis":null,"admission_date":null,"discharge_date":null,"doctor_name":null},
			{"type":"id_card","policy_number":null,"patient_name":null,"dob":null,"insurance_provider":null}
		]`))
	})

	It("parses dates back", func() {
		var d Date
		Expect(json.Unmarshal([]byte(`"1985-05-15"`), &d)).To(Succeed())
		Expect(d.String()).To(Equal("1985-05-15"))
		Expect(json.Unmarshal([]byte(`"15/05/1985"`), &d)).NotTo(Succeed())
	})
})

var _ = Describe("MissingCategories", func() {
	It("lists required categories in fixed order", func() {
		Expect(MissingCategories(nil)).To(Equal([]Category{CategoryBill, CategoryDischargeSummary, CategoryIDCard}))
	})

	It("ignores duplicates", func() {
		Expect(MissingCategories([]Document{IDCard{}, IDCard{}, Bill{}})).To(Equal([]Category{CategoryDischargeSummary}))
	})

	It("returns an empty list when complete", func() {
		missing := MissingCategories([]Document{DischargeSummary{}, Bill{}, IDCard{}})
		Expect(missing).NotTo(BeNil())
		Expect(missing).To(BeEmpty())
	})
})

var _ = Describe("ParseCategory", func() {
	DescribeTable("labels",
		func(label string, expected Category, ok bool) {
			got, valid := ParseCategory(label)
			Expect(got).To(Equal(expected))
			Expect(valid).To(Equal(ok))
		},
		Entry("bill", "bill", CategoryBill, true),
		Entry("mixed case", " ID_Card ", CategoryIDCard, true),
		Entry("other", "other", CategoryOther, true),
		Entry("unknown", "receipt", CategoryOther, false),
	)
})
