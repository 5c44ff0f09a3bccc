package artifact

import "fmt"

// Options selects where artifact text comes from. A git checkout wins over
// object storage; with neither configured there is no source.
type Options struct {
	RepoDir string
	Branch  string

	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Configure returns the configured source, or nil when none is set up.
func Configure(opts Options) (Source, error) {
	switch {
	case opts.RepoDir != "":
		return NewGitSource(opts.RepoDir, opts.Branch), nil
	case opts.Endpoint != "":
		source, err := NewObjectSource(opts.Endpoint, opts.AccessKey, opts.SecretKey, opts.Bucket, opts.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("configure artifact source: %w", err)
		}
		return source, nil
	}
	return nil, nil
}
