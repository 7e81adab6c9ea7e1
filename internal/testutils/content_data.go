package testutils

import "github.com/ahrav/go-verity/internal/domain"

// contentCategory describes one family of generated benchmark cases.
type contentCategory struct {
	name    string
	label   domain.Label
	domains []string
	texts   []string
}

// Subjects are substituted into the %s of every text template.
var benchmarkSubjects = []string{
	"the city council", "the health ministry", "the central bank", "a regional hospital",
	"the transport authority", "a university research team", "the national weather service",
	"the state election board",
}

var contentCategories = []contentCategory{
	{
		name:    "wire_report",
		label:   domain.LabelTrustworthy,
		domains: []string{"reuters.com", "apnews.com", "bbc.co.uk", "npr.org", "theguardian.com"},
		texts: []string{
			"According to officials, %s approved the revised budget on Tuesday after a public hearing that lasted several hours.",
			"Data from %s show that emergency response times improved slightly last year, officials said in a written statement.",
			"In a study published in a peer-reviewed journal, %s reported modest gains in outcomes over a five year period.",
		},
	},
	{
		name:    "science_publisher",
		label:   domain.LabelTrustworthy,
		domains: []string{"nature.com", "nih.gov", "cdc.gov", "who.int"},
		texts: []string{
			"Researchers working with %s found, according to the data, that the effect was smaller than earlier estimates suggested.",
			"A meta-analysis reported by %s confirmed earlier findings and was verified by independent reviewers.",
		},
	},
	{
		name:    "unsourced_blog",
		label:   domain.LabelSuspicious,
		domains: []string{"daily-insights.example", "viewpoint-weekly.example", "my-news-blog.example"},
		texts: []string{
			"Experts agree that %s is about to change everything, and studies show most people have no idea.",
			"Doctors say the new guidance from %s is shocking and nobody is talking about it.",
		},
	},
	{
		name:    "debunked_claim",
		label:   domain.LabelMisinformation,
		domains: []string{"infowars.com", "naturalnews.com", "beforeitsnews.com", "worldtruth.tv"},
		texts: []string{
			"SHOCKING!!! %s finally admits vaccines cause autism and they don't want you to know!!!",
			"Wake up sheeple: %s is hiding proof the moon landing was faked. Share before it's deleted!",
			"You won't believe what %s said about chemtrails. Do your own research before it's too late!",
		},
	},
	{
		name:    "trusted_domain_false_claim",
		label:   domain.LabelMisinformation,
		domains: []string{"nasa.gov", "reuters.com"},
		texts: []string{
			"Scientists confirm %s now accepts the earth is flat.",
			"Experts agree %s proved climate change is a hoax.",
		},
	},
}
