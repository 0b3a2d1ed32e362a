package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = `,cord_uid,title,abstract,url
0,a1,"Droplet transmission","COVID-19 spreads via droplets, ""mostly"" indoors.",https://example.org/a1
1,b2,ACE2 binding,"Spike protein
binds ACE2.",https://example.org/b2
2,c3,Short row
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}
