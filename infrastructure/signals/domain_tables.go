package signals

// DefaultDomainTables returns the built-in reputation tables. Callers get
// a fresh copy they may modify.
func DefaultDomainTables() DomainTables {
	return DomainTables{
		Trusted: map[string]float64{
			// Wire services and international news.
			"reuters.com": 0.98, "apnews.com": 0.98, "bbc.com": 0.97, "bbc.co.uk": 0.97,
			"afp.com": 0.97, "dpa.com": 0.96,

			// Newspapers of record.
			"nytimes.com": 0.94, "washingtonpost.com": 0.93, "wsj.com": 0.94,
			"theguardian.com": 0.93, "thetimes.co.uk": 0.92, "ft.com": 0.93,
			"telegraph.co.uk": 0.91, "economist.com": 0.93, "latimes.com": 0.90,

			// National news.
			"npr.org": 0.90, "pbs.org": 0.90, "cnn.com": 0.87, "nbcnews.com": 0.88,
			"cbsnews.com": 0.88, "abcnews.go.com": 0.88, "usatoday.com": 0.85,

			// Long-form and investigative journalism.
			"theatlantic.com": 0.85, "newyorker.com": 0.85, "vox.com": 0.82,
			"politico.com": 0.83, "axios.com": 0.82, "propublica.org": 0.88,

			// Scientific and academic publishers.
			"nature.com": 0.97, "science.org": 0.97, "cell.com": 0.96,
			"thelancet.com": 0.96, "nejm.org": 0.96, "plos.org": 0.94,
			"arxiv.org": 0.88, "scholar.google.com": 0.85,

			// Fact-checking desks.
			"factcheck.org": 0.95, "snopes.com": 0.94, "politifact.com": 0.94,
			"fullfact.org": 0.93, "truthorfiction.com": 0.92,
			"mediabiasfactcheck.com": 0.90, "checkyourfact.com": 0.91,

			// Government and intergovernmental.
			"un.org": 0.93, "who.int": 0.94, "cdc.gov": 0.95, "nih.gov": 0.95, "nasa.gov": 0.98,

			// Reference works.
			"wikipedia.org": 0.82, "britannica.com": 0.88, "dictionary.com": 0.85,
		},
		Untrusted: map[string]float64{
			"infowars.com": 0.15, "naturalnews.com": 0.20, "beforeitsnews.com": 0.18,
			"yournewswire.com": 0.15, "newspunch.com": 0.18, "worldtruth.tv": 0.20,
			"realfarmacy.com": 0.22, "collective-evolution.com": 0.25,
		},
		Suffixes: map[string]float64{
			"gov": 0.92,
			"edu": 0.88,

			// Free or low-cost TLDs favored by throwaway sites score
			// below neutral.
			"tk": 0.35, "ml": 0.35, "ga": 0.35, "cf": 0.35, "gq": 0.35,
			"xyz": 0.35, "info": 0.35,
		},
	}
}
