package xlscope

import (
	"fmt"
	"io"
	"os"
)

// Fill evaluates a template file against data and writes the result to outputPath.
func Fill(templatePath, outputPath string, data any, opts ...Option) error {
	wb, err := Open(templatePath, opts...)
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.Evaluate(data); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", outputPath, err)
	}
	defer out.Close()

	if err := wb.Write(out); err != nil {
		os.Remove(outputPath)
		return err
	}
	return nil
}

// FillBytes evaluates a template file against data and returns the result.
func FillBytes(templatePath string, data any, opts ...Option) ([]byte, error) {
	wb, err := Open(templatePath, opts...)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	if err := wb.Evaluate(data); err != nil {
		return nil, err
	}
	return wb.Bytes()
}

// FillReader evaluates a template read from template and writes the result to output.
func FillReader(template io.Reader, output io.Writer, data any, opts ...Option) error {
	wb, err := OpenReader(template, opts...)
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.Evaluate(data); err != nil {
		return err
	}
	return wb.Write(output)
}
