package batsgen

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
)

func init() {
	gob.Register(TargetList{})
	gob.Register(Target{})
}

// WriteCache persists the option values and the evaluated build file.
// Declared options aren't cached; they only matter for help output.
func WriteCache(file string, options map[string]string, build *BuildFile) error {
	handle, err := os.Create(file)
	if err != nil {
		return err
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(options)
	if err != nil {
		return err
	}

	err = encoder.Encode(build.Targets)
	if err != nil {
		return err
	}

	return encoder.Encode(build.HelperSources)
}

// ReadCache loads previously cached option values and build results.
func ReadCache(file string) (map[string]string, *BuildFile, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, err
	}

	build := &BuildFile{}
	err = decoder.Decode(&build.Targets)
	if err != nil {
		return options, nil, err
	}

	err = decoder.Decode(&build.HelperSources)
	if err != nil {
		return options, nil, err
	}

	return options, build, nil
}

// CheckCacheFreshness returns ErrStaleCache if the build file changed after
// the cache was written. Rendered scripts are never re-derived implicitly;
// callers have to re-evaluate the build file when this fails.
func CheckCacheFreshness(cacheFile, buildFile string) error {
	cacheInfo, err := os.Stat(cacheFile)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", cacheFile)
	}

	buildInfo, err := os.Stat(buildFile)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", buildFile)
	}

	if buildInfo.ModTime().After(cacheInfo.ModTime()) {
		return eris.Wrapf(ErrStaleCache, "%s is newer than %s", buildFile, cacheFile)
	}

	return nil
}
