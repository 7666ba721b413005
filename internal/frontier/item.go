package frontier

// Item is the crawl record for one canonical URL.
type Item struct {
	URL     string // canonical dedup key
	Target  string // fetchable form, keeps the original scheme
	RawURL  string // href as found on the page, used for scoring only
	Wave    int
	Score   float64
	InLinks URLSet
}

func NewItem(url, target, raw string, inLinks ...string) *Item {
	it := &Item{URL: url, Target: target, RawURL: raw}
	for _, src := range inLinks {
		it.InLinks.Add(src)
	}
	return it
}

// FetchURL is the address the transport should request.
func (it *Item) FetchURL() string {
	if it.Target != "" {
		return it.Target
	}
	return it.URL
}

func (it *Item) Clone() *Item {
	c := *it
	c.InLinks = it.InLinks.Clone()
	return &c
}
