package trainjob

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// Inputs are the files selected from the two channels.
type Inputs struct {
	Training []string
	Testing  []string

	// Skipped lists candidates that were found but not selected, by channel.
	Skipped map[string][]string
}

// LocateInputs selects the dataset files of the training and testing
// channels. Hidden entries and directories are ignored; the remaining
// entries are taken in lexicographic order. Without concat only the first
// file of each channel is used.
func LocateInputs(trainDir, testDir string, concat bool) (*Inputs, error) {
	in := &Inputs{Skipped: make(map[string][]string)}

	train := candidates(trainDir)
	if len(train) == 0 {
		return nil, errors.NewNoInputDataError(ChannelTraining, trainDir)
	}
	test := candidates(testDir)
	if len(test) == 0 {
		return nil, errors.NewNoTestDataError(ChannelTesting, testDir)
	}

	in.Training, in.Skipped[ChannelTraining] = pick(train, concat)
	in.Testing, in.Skipped[ChannelTesting] = pick(test, concat)
	return in, nil
}

// candidates lists the non-hidden regular files of dir. An unreadable
// directory yields no candidates.
func candidates(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files
}

func pick(files []string, concat bool) (selected, skipped []string) {
	if concat {
		return files, nil
	}
	return files[:1], files[1:]
}
