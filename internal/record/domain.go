package record

import "strconv"

// NewspaperIssue is one release of the municipal newsletter. Issues are
// identified as YYYYRR (year*100 + release), the scheme the mobile app
// already keys its database by.
type NewspaperIssue struct {
	Year    int
	Release int
	Link    string
}

func (n NewspaperIssue) Canonical() Record {
	return NewRecord(strconv.Itoa(n.Year*100+n.Release), map[string]string{
		"year":    strconv.Itoa(n.Year),
		"release": strconv.Itoa(n.Release),
		"link":    n.Link,
	})
}

// Contact is one entry of the municipal contact directory. Contacts carry
// only the fields the site publishes for them; empty optional fields are
// omitted so the stored shape matches what the apps render.
type Contact struct {
	Category    string
	Title       string
	Subtitle    string
	Address     string
	Phone       string
	Phone2      string
	Email       string
	Web         string
	Maintenance string
}

func (c Contact) Canonical() Record {
	fields := map[string]string{
		"category": c.Category,
		"title":    c.Title,
	}
	optional := map[string]string{
		"subtitle":    c.Subtitle,
		"address":     c.Address,
		"phone":       c.Phone,
		"phone2":      c.Phone2,
		"email":       c.Email,
		"web":         c.Web,
		"maintenance": c.Maintenance,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return NewRecord(c.Category+"/"+Slug(c.Title), fields)
}

// DocumentFile is the metadata of one downloadable document. The id keys
// by folder and name so the same filename may appear in two folders.
type DocumentFile struct {
	Folder    string // folder display name
	Name      string
	URL       string
	FileType  string
	MimeType  string
	SizeBytes int64
}

func (d DocumentFile) Canonical() Record {
	return NewRecord(Slug(d.Folder)+"/"+Slug(d.Name), map[string]string{
		"folder_id":  Slug(d.Folder),
		"name":       d.Name,
		"url":        d.URL,
		"file_type":  d.FileType,
		"mime_type":  d.MimeType,
		"size_bytes": strconv.FormatInt(d.SizeBytes, 10),
	})
}

// Folder is a document category on the citizen portal.
type Folder struct {
	Name string
}

func (f Folder) Canonical() Record {
	return NewRecord(Slug(f.Name), map[string]string{
		"name": f.Name,
	})
}
