package entity

// Site is one normalized crawl target taken from the ingress batch.
type Site struct {
	RootURL     string `json:"root_url"`
	Host        string `json:"host"`
	CompanyName string `json:"company_name"`
}

// Socials holds at most one profile URL per supported network.
type Socials struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Facebook string `json:"facebook,omitempty"`
	X        string `json:"x,omitempty"`
}

// Empty reports whether no social profile has been discovered yet.
func (s Socials) Empty() bool {
	return s.LinkedIn == "" && s.Facebook == "" && s.X == ""
}

// Merge copies values from other into fields that are still empty.
// First non-empty value wins per site.
func (s *Socials) Merge(other Socials) {
	if s.LinkedIn == "" {
		s.LinkedIn = other.LinkedIn
	}
	if s.Facebook == "" {
		s.Facebook = other.Facebook
	}
	if s.X == "" {
		s.X = other.X
	}
}
