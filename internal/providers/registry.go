package providers

// LyricsProvidersByName builds lyric providers from configured names,
// preserving priority order. Unknown names are skipped.
func LyricsProvidersByName(names []string) []LyricsProvider {
	var result []LyricsProvider
	for _, name := range names {
		switch name {
		case "lrclib":
			result = append(result, NewLrclibProvider())
		}
	}
	return result
}

// ArtistImageProvidersByName builds artist image providers from configured
// names, preserving priority order. Unknown names are skipped.
func ArtistImageProvidersByName(names []string) []ArtistImageProvider {
	var result []ArtistImageProvider
	for _, name := range names {
		switch name {
		case "deezer":
			result = append(result, NewDeezerProvider())
		}
	}
	return result
}
