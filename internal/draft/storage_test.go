package draft

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		basePath string
		storage  *LocalStorage
	)

	BeforeEach(func() {
		basePath = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(basePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips image data", func() {
		name, err := storage.Save("scan.png", []byte("image bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("scan.png"))

		data, err := storage.Get("scan.png")
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("image bytes")))
	})

	It("fans files out into shard directories", func() {
		_, err := storage.Save("ab12_scan.png", []byte("image bytes"))
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(filepath.Join(basePath, "ab", "ab12_scan.png"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("strips path components from upload names", func() {
		name, err := storage.Save("../../etc/passwd.png", []byte("image bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("passwd.png"))

		_, err = os.Stat(filepath.Join(basePath, "pa", "passwd.png"))
		Expect(err).NotTo(HaveOccurred())

		data, err := storage.Get(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("image bytes")))
	})

	It("errors when reading a missing file", func() {
		_, err := storage.Get("missing.png")
		Expect(err).To(HaveOccurred())
	})

	It("deletes a stored file", func() {
		_, err := storage.Save("scan.png", []byte("image bytes"))
		Expect(err).NotTo(HaveOccurred())

		Expect(storage.Delete("scan.png")).To(Succeed())
		_, err = storage.Get("scan.png")
		Expect(err).To(HaveOccurred())
	})
})
