package interpret

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/tindahan/internal/knowledge"
)

var _ = Describe("Segment", func() {
	conjunctions := []string{"at", "tsaka"}

	It("should split on commas, periods and conjunctions", func() {
		Expect(Segment("isang coke at dalawang chippy. tatlong itlog, isang bigas tsaka asin", conjunctions)).
			To(Equal([]string{"isang coke", "dalawang chippy", "tatlong itlog", "isang bigas", "asin"}))
	})

	It("should keep decimal points inside a segment", func() {
		Expect(Segment("dalawang coke 1.5 litro, isang bigas", conjunctions)).
			To(Equal([]string{"dalawang coke 1.5 litro", "isang bigas"}))
	})

	It("should split the sample transcript into four segments", func() {
		Expect(Segment("dalawang coke 1.5 litro, tatlong lucky me pancit canton, isang kilo bigas, sampung itlog", conjunctions)).
			To(HaveLen(4))
	})

	It("should only split on whole-word conjunctions", func() {
		Expect(Segment("isang tatlong-at bigas", conjunctions)).To(Equal([]string{"isang tatlong-at bigas"}))
		Expect(Segment("isang asukal", conjunctions)).To(Equal([]string{"isang asukal"}))
	})

	It("should drop empty segments", func() {
		Expect(Segment(",, . at , bigas ,", conjunctions)).To(Equal([]string{"bigas"}))
	})

	It("should return an empty sequence for empty input", func() {
		segments := Segment("", conjunctions)
		Expect(segments).NotTo(BeNil())
		Expect(segments).To(BeEmpty())
	})
})

var _ = Describe("ExtractQuantityUnit", func() {
	var (
		locale    knowledge.Locale
		segment   string
		extracted Extraction
	)

	BeforeEach(func() {
		locale = mustDefaultKnowledge().Locale("fil")
	})

	JustBeforeEach(func() {
		extracted = ExtractQuantityUnit(segment, locale, "pc")
	})

	When("the segment has a number word and a unit", func() {
		BeforeEach(func() {
			segment = "isang kilo bigas"
		})

		It("should read both and leave the product", func() {
			Expect(extracted).To(Equal(Extraction{Quantity: 1, Unit: "kg", Residual: "ng bigas"}))
		})
	})

	When("the segment has a number word and digits", func() {
		BeforeEach(func() {
			segment = "dalawang coke 1.5 litro"
		})

		It("should prefer the number word", func() {
			Expect(extracted.Quantity).To(Equal(2))
			Expect(extracted.Unit).To(Equal("L"))
			Expect(extracted.Residual).To(Equal("ng coke 1.5"))
		})
	})

	When("the segment has only digits", func() {
		BeforeEach(func() {
			segment = "5 piraso chippy"
		})

		It("should read the digits", func() {
			Expect(extracted).To(Equal(Extraction{Quantity: 5, Unit: "pc", Residual: "chippy"}))
		})
	})

	When("the segment has a compound number word", func() {
		BeforeEach(func() {
			segment = "dalawampung itlog"
		})

		It("should not stop at the shorter word", func() {
			Expect(extracted.Quantity).To(Equal(20))
		})
	})

	When("the segment has no quantity or unit", func() {
		BeforeEach(func() {
			segment = "coke"
		})

		It("should default to one piece", func() {
			Expect(extracted).To(Equal(Extraction{Quantity: 1, Unit: "pc", Residual: "coke"}))
		})
	})

	When("an English tens word contains a digit word", func() {
		BeforeEach(func() {
			locale = mustDefaultKnowledge().Locale("en")
			segment = "sixty eggs"
		})

		It("should read the tens word", func() {
			Expect(extracted.Quantity).To(Equal(60))
			Expect(extracted.Residual).To(Equal("eggs"))
		})
	})

	When("a Filipino tens word contains a digit word", func() {
		BeforeEach(func() {
			segment = "siyamnapung itlog"
		})

		It("should read the tens word", func() {
			Expect(extracted.Quantity).To(Equal(90))
		})
	})

	When("the digits are zero", func() {
		BeforeEach(func() {
			segment = "0 chippy"
		})

		It("should default to one", func() {
			Expect(extracted.Quantity).To(Equal(1))
			Expect(extracted.Residual).To(Equal("chippy"))
		})
	})
})

var _ = Describe("Resolve", func() {
	var kb *knowledge.Base

	BeforeEach(func() {
		kb = mustDefaultKnowledge()
	})

	It("should resolve a generic local term", func() {
		p, ok := Resolve("ng bigas", kb)
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("Rice"))
		Expect(p.LocalName).To(Equal("bigas"))
		Expect(p.Unbranded).To(BeTrue())
		Expect(p.Tier).To(Equal(TierGeneric))
	})

	It("should resolve a branded variant case-insensitively", func() {
		p, ok := Resolve("Lucky Me", kb)
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("Pancit Canton"))
		Expect(p.Brand).To(Equal("Lucky Me"))
		Expect(p.Unbranded).To(BeFalse())
		Expect(p.Tier).To(Equal(TierBranded))
	})

	It("should prefer the generic tier over the branded tier", func() {
		p, ok := Resolve("lucky me bigas", kb)
		Expect(ok).To(BeTrue())
		Expect(p.Tier).To(Equal(TierGeneric))
		Expect(p.Name).To(Equal("Rice"))
	})

	It("should use the keyword fallback last", func() {
		p, ok := Resolve("cola", kb)
		Expect(ok).To(BeTrue())
		Expect(p.Tier).To(Equal(TierFallback))
		Expect(p.Brand).To(Equal("Coca-Cola"))
	})

	It("should fail for unknown text", func() {
		_, ok := Resolve("martilyo", kb)
		Expect(ok).To(BeFalse())
	})

	It("should fail for empty text", func() {
		_, ok := Resolve("  ", kb)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("EstimatePrice", func() {
	It("should price listed categories from the table", func() {
		Expect(EstimatePrice(mustDefaultKnowledge(), "beverage", "pc")).To(Equal(65.0))
	})

	It("should fall back for unlisted categories", func() {
		Expect(EstimatePrice(mustDefaultKnowledge(), "seasoning", "pc")).To(Equal(20.0))
	})
})

var _ = Describe("BuildItem", func() {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	It("should multiply the unit price by the quantity", func() {
		item := BuildItem(Extraction{Quantity: 3, Unit: "pc"}, Product{Name: "Chippy", Brand: "Jack n Jill", Category: "snacks"}, 25, mustDefaultKnowledge(), now)
		Expect(item.TotalPrice).To(Equal(75.0))
		Expect(item.SKU).To(Equal("JAC-CHIP-312800"))
	})

	It("should flag more than ten litres as bulk", func() {
		item := BuildItem(Extraction{Quantity: 11, Unit: "L"}, Product{Name: "Cooking Oil", Unbranded: true}, 85, mustDefaultKnowledge(), now)
		Expect(item.IsBulk).To(BeTrue())
	})

	It("should not flag exactly ten kilos as bulk", func() {
		item := BuildItem(Extraction{Quantity: 10, Unit: "kg"}, Product{Name: "Rice", Unbranded: true}, 55, mustDefaultKnowledge(), now)
		Expect(item.IsBulk).To(BeFalse())
	})

	It("should not flag many pieces as bulk", func() {
		item := BuildItem(Extraction{Quantity: 30, Unit: "pc"}, Product{Name: "Eggs", Unbranded: true}, 8, mustDefaultKnowledge(), now)
		Expect(item.IsBulk).To(BeFalse())
	})

	It("should handle names shorter than the SKU prefix", func() {
		item := BuildItem(Extraction{Quantity: 1, Unit: "pc"}, Product{Name: "Ox", Unbranded: true}, 8, mustDefaultKnowledge(), now)
		Expect(item.SKU).To(Equal("UNB-OX-312800"))
	})
})

var _ = Describe("ParseReceipt", func() {
	var (
		text  string
		items []TransactionItem
	)

	JustBeforeEach(func() {
		items = ParseReceipt(text, "pc", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	})

	When("a line is well formed", func() {
		BeforeEach(func() {
			text = "2 Lucky Me Pancit Canton 30.00"
		})

		It("should parse quantity, name and prices", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Quantity).To(Equal(2))
			Expect(items[0].ProductName).To(Equal("Lucky Me Pancit Canton"))
			Expect(items[0].TotalPrice).To(Equal(30.0))
			Expect(items[0].UnitPrice).To(Equal(15.0))
		})

		It("should mark the item as an unbranded OCR piece", func() {
			Expect(items[0].Unit).To(Equal("pc"))
			Expect(items[0].Category).To(Equal("unknown"))
			Expect(items[0].IsUnbranded).To(BeTrue())
			Expect(items[0].IsBulk).To(BeFalse())
			Expect(items[0].DetectionMethod).To(Equal(DetectionOCR))
			Expect(items[0].Confidence).To(Equal(0.8))
		})
	})

	When("the receipt mixes good and bad lines", func() {
		BeforeEach(func() {
			text = "2 Lucky Me Pancit Canton 30.00\n\nabc Soap 10.00\n1 Bar xyz\nSubtotal 2 40.00\n3 Sabon 10.00\n1 Bigas ₱1,250.00\n"
		})

		It("should skip only the bad lines", func() {
			Expect(items).To(HaveLen(3))
			Expect(items[1].ProductName).To(Equal("Sabon"))
			Expect(items[2].TotalPrice).To(Equal(1250.0))
		})

		It("should hold the item invariants", func() {
			expectItemInvariants(items)
		})
	})

	When("a line contains TOTAL", func() {
		BeforeEach(func() {
			text = "1 total 99.00\n2 GRAND TOTAL 40.00"
		})

		It("should never become an item", func() {
			Expect(items).To(BeEmpty())
		})
	})

	When("a line has a zero quantity or negative price", func() {
		BeforeEach(func() {
			text = "0 Coke 65.00\n1 Coke -65.00"
		})

		It("should skip it", func() {
			Expect(items).To(BeEmpty())
		})
	})
})

var _ = Describe("Aggregate", func() {
	var kb *knowledge.Base

	BeforeEach(func() {
		kb = mustDefaultKnowledge()
	})

	Describe("RankCategories", func() {
		It("should order categories by value", func() {
			stats := RankCategories([]TransactionItem{
				{Category: "A", Quantity: 1, TotalPrice: 10},
				{Category: "B", Quantity: 2, TotalPrice: 30},
				{Category: "A", Quantity: 3, TotalPrice: 5},
			})
			Expect(stats).To(Equal([]CategoryStat{
				{Category: "B", Count: 2, Value: 30},
				{Category: "A", Count: 4, Value: 15},
			}))
		})

		It("should keep first-seen order for equal values", func() {
			stats := RankCategories([]TransactionItem{
				{Category: "X", Quantity: 1, TotalPrice: 10},
				{Category: "Y", Quantity: 1, TotalPrice: 10},
			})
			Expect(stats[0].Category).To(Equal("X"))
			Expect(stats[1].Category).To(Equal("Y"))
		})
	})

	When("rice and cooking oil are both bought", func() {
		It("should not suggest oil", func() {
			_, insights := Aggregate([]TransactionItem{
				{ProductName: "Rice", IsUnbranded: true, Quantity: 1, TotalPrice: 55},
				{ProductName: "Cooking Oil", IsUnbranded: true, Quantity: 1, TotalPrice: 85},
			}, kb)
			Expect(insights.Suggestions).To(BeEmpty())
		})
	})

	When("a branded price is outside its range", func() {
		It("should report an anomaly", func() {
			_, insights := Aggregate([]TransactionItem{
				{ProductName: "Coke", Quantity: 1, UnitPrice: 120, TotalPrice: 120},
			}, kb)
			Expect(insights.PriceAnomalies).To(ConsistOf("Coke priced at 120.00, expected 55.00-75.00"))
		})
	})

	When("one of four items is branded", func() {
		It("should split the percentages by item count", func() {
			totals, insights := Aggregate([]TransactionItem{
				{ProductName: "Coke", Quantity: 5, TotalPrice: 325},
				{ProductName: "Rice", IsUnbranded: true, Quantity: 1, TotalPrice: 55},
				{ProductName: "Eggs", IsUnbranded: true, Quantity: 1, TotalPrice: 8},
				{ProductName: "Salt", IsUnbranded: true, Quantity: 1, TotalPrice: 20},
			}, kb)
			Expect(insights.BrandedVsUnbranded).To(Equal(Split{BrandedPercentage: 25, UnbrandedPercentage: 75}))
			Expect(totals[TotalItems]).To(Equal(8.0))
			Expect(totals[BrandedCount]).To(Equal(1.0))
			Expect(totals[UnbrandedAmount]).To(Equal(83.0))
		})
	})
})
