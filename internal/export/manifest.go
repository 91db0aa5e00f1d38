package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest documents one export batch on the destination medium.
type Manifest struct {
	Batch     string         `yaml:"batch"`
	CreatedAt time.Time      `yaml:"created_at"`
	Host      string         `yaml:"host,omitempty"`
	Exported  int            `yaml:"exported"`
	Items     []ManifestItem `yaml:"items"`
}

// ManifestItem is one line of the manifest.
type ManifestItem struct {
	File    string `yaml:"file"`
	Bytes   int64  `yaml:"bytes"`
	Outcome string `yaml:"outcome"`
	Deleted bool   `yaml:"source_deleted"`
	Error   string `yaml:"error,omitempty"`
}

// ManifestName returns the file name used for batch.
func ManifestName(batch string) string {
	return fmt.Sprintf("drip-export-%s.yaml", batch)
}

func writeManifest(destDir string, res Result) (string, error) {
	host, _ := os.Hostname()
	m := Manifest{
		Batch:     res.BatchID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Host:      host,
		Exported:  res.Exported,
		Items:     make([]ManifestItem, 0, len(res.Items)),
	}
	for _, item := range res.Items {
		m.Items = append(m.Items, ManifestItem{
			File:    filepath.Base(item.DestPath),
			Bytes:   item.Bytes,
			Outcome: string(item.Outcome),
			Deleted: item.Outcome == OutcomeDeleted,
			Error:   item.Error,
		})
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(destDir, ManifestName(res.BatchID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest decodes a manifest written by a previous batch.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
