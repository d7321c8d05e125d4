package data

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//go:embed data-files
var dataFilesRoot embed.FS

const dataBasePath = "data-files"

// SourceInfo represents JSON or YAML data that was read from a file, after post-processing to expand
// constants and parameters. For non-parameterized files, you will get one SourceInfo per file. For
// parameterized files, there is one instance per parameter set, each with its own version of Data.
type SourceInfo struct {
	FilePath string
	BaseName string
	Params   map[string]string
	Data     []byte
}

func (s SourceInfo) ParseInto(target interface{}) error {
	if err := ParseJSONOrYAML(s.Data, target); err != nil {
		return fmt.Errorf("error parsing %q %s: %w", s.BaseName, s.ParamsString(), err)
	}
	return nil
}

// ParamsString describes the parameter set, such as "(count=2,token=999)", with names sorted so
// that test names are stable from run to run.
func (s SourceInfo) ParamsString() string {
	if len(s.Params) == 0 {
		return ""
	}
	names := maps.Keys(s.Params)
	slices.Sort(names)
	ps := make([]string, 0, len(names))
	for _, name := range names {
		ps = append(ps, name+"="+s.Params[name])
	}
	return "(" + strings.Join(ps, ",") + ")"
}

// LoadDataFile reads a data file and performs any necessary constant/parameter substitutions. It can
// return more than one SourceInfo because any file can be parameterized.
//
// The path parameter is relative to data/data-files.
func LoadDataFile(path string) ([]SourceInfo, error) {
	data, err := dataFilesRoot.ReadFile(dataBasePath + "/" + path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return loadSources(path, data)
}

func loadSources(path string, data []byte) ([]SourceInfo, error) {
	baseName := filepath.Base(path)
	sources, err := expandSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", path, err)
	}
	ret := make([]SourceInfo, 0, len(sources))
	for _, source := range sources {
		source.FilePath = path
		source.BaseName = baseName
		ret = append(ret, source)
	}
	return ret, nil
}

// LoadAllDataFiles reads all data files in a directory and performs any necessary constant/parameter
// substitutions. It can return more than one SourceInfo per file.
//
// The path parameter is relative to data/data-files.
func LoadAllDataFiles(path string) ([]SourceInfo, error) {
	files, err := dataFilesRoot.ReadDir(dataBasePath + "/" + path)
	if err != nil {
		return nil, err
	}
	var ret []SourceInfo
	for _, file := range files {
		if file.IsDir() || !isDataFile(file.Name()) {
			continue
		}
		sources, err := LoadDataFile(path + "/" + file.Name())
		if err != nil {
			return nil, err
		}
		ret = append(ret, sources...)
	}
	return ret, nil
}

func isDataFile(name string) bool {
	return slices.Contains([]string{".json", ".yaml", ".yml"}, filepath.Ext(name))
}
