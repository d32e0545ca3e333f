package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/provenance/config"
	"github.com/grovetools/provenance/pkg/record"
)

func main() {
	outputDir := "schema/definitions"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	schemas := []struct {
		file     string
		generate func() ([]byte, error)
	}{
		{"prov.schema.json", config.GenerateSchema},
		{"record.schema.json", record.Schema},
	}

	for _, s := range schemas {
		data, err := s.generate()
		if err != nil {
			log.Fatalf("Error generating %s: %v", s.file, err)
		}
		outputPath := filepath.Join(outputDir, s.file)
		if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Generated %s", outputPath)
	}
}
