// Package version reports the build version of a reportflow binary.
//
//	go build -ldflags "-X github.com/kbukum/reportflow/version.Version=1.2.0"
package version
