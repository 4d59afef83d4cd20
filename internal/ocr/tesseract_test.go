package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubRunner records the command it was asked to run
type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error
	name   string
	args   []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	return s.stdout, s.stderr, s.err
}

func tinyPNG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Tesseract", func() {
	var (
		runner    *stubRunner
		tesseract *Tesseract
		result    *Result
		err       error
	)

	BeforeEach(func() {
		runner = &stubRunner{stdout: []byte("Big Mart\nTotal 450\n")}
	})

	JustBeforeEach(func() {
		tesseract = NewTesseract("", "")
		tesseract.runner = runner
		result, err = tesseract.Recognize(context.Background(), tinyPNG(), "image/png")
	})

	When("the binary succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the cleaned transcript", func() {
			Expect(result.FullText).To(Equal("Big Mart\nTotal 450"))
			Expect(result.Lines).To(Equal([]string{"Big Mart", "Total 450"}))
		})

		It("invokes tesseract with stdout output and the default language", func() {
			Expect(runner.name).To(Equal("tesseract"))
			Expect(runner.args).To(HaveLen(4))
			Expect(runner.args[1]).To(Equal("stdout"))
			Expect(runner.args[2:]).To(Equal([]string{"-l", "eng"}))
		})
	})

	When("the binary fails", func() {
		BeforeEach(func() {
			runner.err = errors.New("exit status 1")
			runner.stderr = []byte("Error opening data file")
		})

		It("returns the error with stderr context", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("running tesseract"))
			Expect(err.Error()).To(ContainSubstring("Error opening data file"))
		})
	})
})
