//go:build !unix

package source

func openMapped(path string) (Source, error) {
	return openFile(path)
}
