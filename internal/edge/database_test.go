package edge

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/tindahan/internal/interpret"
)

func sampleOutput(id string) *interpret.TransactionOutput {
	brand := "Coca-Cola"
	return &interpret.TransactionOutput{
		StoreID:       "SM-001",
		DeviceID:      "RPI-001",
		Timestamp:     "2024-01-15T10:00:00Z",
		TransactionID: id,
		Items: []interpret.TransactionItem{{
			BrandName:       &brand,
			ProductName:     "Coke",
			SKU:             "COC-COKE-312800",
			Quantity:        2,
			Unit:            "L",
			UnitPrice:       65,
			TotalPrice:      130,
			Category:        "beverage",
			DetectionMethod: interpret.DetectionSTT,
			Confidence:      interpret.ConfidenceSTT,
		}},
		Totals:        map[string]float64{interpret.TotalAmount: 130, interpret.TotalItems: 2},
		PaymentMethod: interpret.DefaultPaymentMethod,
		EdgeVersion:   interpret.DefaultEdgeVersion,
	}
}

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
		now    time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "edge.db")
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("RecordTransaction", func() {
		var (
			out *interpret.TransactionOutput
			err error
		)

		BeforeEach(func() {
			out = sampleOutput("TXN-1705312800-aaaa0001")
		})

		JustBeforeEach(func() {
			err = db.RecordTransaction(out, nil, now)
		})

		When("recording succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should store the transaction", func() {
				stored, getErr := db.GetTransaction(out.TransactionID)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(stored).To(Equal(out))
			})

			It("should queue it for delivery", func() {
				ids, listErr := db.ListOutbox()
				Expect(listErr).NotTo(HaveOccurred())
				Expect(ids).To(Equal([]string{out.TransactionID}))
			})
		})

		When("the transaction has no ID", func() {
			BeforeEach(func() {
				out.TransactionID = ""
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("transaction id is required")))
			})
		})
	})

	Describe("GetTransaction", func() {
		When("the transaction is unknown", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetTransaction("TXN-missing")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("GetCapture", func() {
		When("the transaction was read from a capture", func() {
			BeforeEach(func() {
				ref := &CaptureRef{Path: "2024/01/15/1705312800_order.wav", ContentType: "audio/wav"}
				Expect(db.RecordTransaction(sampleOutput("TXN-1"), ref, now)).To(Succeed())
			})

			It("should return the linked capture", func() {
				ref, err := db.GetCapture("TXN-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(ref.Path).To(Equal("2024/01/15/1705312800_order.wav"))
				Expect(ref.ContentType).To(Equal("audio/wav"))
			})
		})

		When("the transaction came from text", func() {
			BeforeEach(func() {
				Expect(db.RecordTransaction(sampleOutput("TXN-1"), nil, now)).To(Succeed())
			})

			It("returns ErrNotFound", func() {
				_, err := db.GetCapture("TXN-1")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListTransactions", func() {
		When("the store is empty", func() {
			It("should return an empty slice", func() {
				outputs, err := db.ListTransactions()
				Expect(err).NotTo(HaveOccurred())
				Expect(outputs).NotTo(BeNil())
				Expect(outputs).To(BeEmpty())
			})
		})

		When("transactions exist", func() {
			BeforeEach(func() {
				Expect(db.RecordTransaction(sampleOutput("TXN-1705312900-b"), nil, now)).To(Succeed())
				Expect(db.RecordTransaction(sampleOutput("TXN-1705312800-a"), nil, now)).To(Succeed())
			})

			It("should return them in ID order", func() {
				outputs, err := db.ListTransactions()
				Expect(err).NotTo(HaveOccurred())
				Expect(outputs).To(HaveLen(2))
				Expect(outputs[0].TransactionID).To(Equal("TXN-1705312800-a"))
				Expect(outputs[1].TransactionID).To(Equal("TXN-1705312900-b"))
			})
		})
	})

	Describe("RemoveOutbox", func() {
		BeforeEach(func() {
			Expect(db.RecordTransaction(sampleOutput("TXN-1"), nil, now)).To(Succeed())
			Expect(db.RecordTransaction(sampleOutput("TXN-2"), nil, now)).To(Succeed())
		})

		It("should drop only the delivered ID", func() {
			Expect(db.RemoveOutbox("TXN-1")).To(Succeed())
			ids, err := db.ListOutbox()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"TXN-2"}))
		})

		It("should keep the transaction itself", func() {
			Expect(db.RemoveOutbox("TXN-1")).To(Succeed())
			_, err := db.GetTransaction("TXN-1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should tolerate unknown IDs", func() {
			Expect(db.RemoveOutbox("TXN-unknown")).To(Succeed())
		})
	})

	Describe("reopening", func() {
		It("should keep transactions and the outbox", func() {
			Expect(db.RecordTransaction(sampleOutput("TXN-1"), nil, now)).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			ids, err := db.ListOutbox()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"TXN-1"}))
		})
	})
})
