package cmd

import (
	"bytes"
	"fmt"
	"image"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/internal/fetch"
	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/slicer"
	"github.com/kiesman99/imslice/pkg/tile"
)

// addSourceFlags registers the HTTP options used when SOURCE is a URL.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("user-agent", fetch.DefaultUserAgent, "HTTP User-Agent header for URL sources")
	cmd.Flags().StringToString("header", nil, "extra HTTP header for URL sources, e.g. --header Referer=https://example.com")
}

// openSource returns the slicer source for a path or URL. Local paths are
// opened by the slicer; URLs are downloaded and decoded here.
func (a *app) openSource(cmd *cobra.Command, source string) (slicer.Source, error) {
	if !fetch.IsURL(source) {
		return slicer.FromPath(source), nil
	}
	img, err := a.download(cmd, source)
	if err != nil {
		return slicer.Source{}, err
	}
	return slicer.FromImage(img), nil
}

func (a *app) download(cmd *cobra.Command, url string) (image.Image, error) {
	userAgent, _ := cmd.Flags().GetString("user-agent")
	headers, _ := cmd.Flags().GetStringToString("header")

	f := fetch.New(&fetch.Options{UserAgent: userAgent, Headers: headers})
	data, err := f.Get(cmd.Context(), url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tile.ErrSourceUnreadable, err)
	}

	img, err := imageops.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", tile.ErrSourceUnreadable, url, err)
	}
	a.logger.Info("downloaded source", "url", url, "bytes", len(data))
	return img, nil
}
