package edge

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalArchive", func() {
	var (
		tmpDir  string
		archive *LocalArchive
		takenAt time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		takenAt = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		var err error
		archive, err = NewLocalArchive(filepath.Join(tmpDir, "captures"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			path string
			err  error
		)

		JustBeforeEach(func() {
			path, err = archive.Save(takenAt, "1_receipt.jpg", []byte("jpeg bytes"))
		})

		It("should file the capture under its day", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join("2024-01-15", "1_receipt.jpg")))
			Expect(filepath.Join(tmpDir, "captures", path)).To(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		When("the capture exists", func() {
			It("should return its bytes", func() {
				path, err := archive.Save(takenAt, "order.wav", []byte("RIFF"))
				Expect(err).NotTo(HaveOccurred())
				data, err := archive.Get(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("RIFF"))
			})
		})

		When("the capture does not exist", func() {
			It("returns an error", func() {
				_, err := archive.Get("2024-01-15/missing.jpg")
				Expect(err).To(MatchError(ContainSubstring("reading capture")))
			})
		})

		When("the path leaves the archive", func() {
			It("returns an error", func() {
				_, err := archive.Get("../edge.db")
				Expect(err).To(MatchError(ContainSubstring("outside the archive")))
			})
		})
	})

	Describe("Delete", func() {
		It("should remove the capture", func() {
			path, err := archive.Save(takenAt, "order.wav", []byte("RIFF"))
			Expect(err).NotTo(HaveOccurred())
			Expect(archive.Delete(path)).To(Succeed())
			Expect(filepath.Join(tmpDir, "captures", path)).NotTo(BeAnExistingFile())
		})

		It("returns an error for unknown captures", func() {
			Expect(archive.Delete("2024-01-15/missing.wav")).To(MatchError(ContainSubstring("deleting capture")))
		})
	})
})
