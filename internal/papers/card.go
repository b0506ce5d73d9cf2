package papers

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arxiv-daily/internal/models"
)

// ImageRoute is the URL prefix under which data images are served
const ImageRoute = "/data/images/"

var githubPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/[^\s\])>\]]+`)

// ExtractGitHubURL returns the first GitHub link found in the candidates,
// with trailing punctuation removed.
func ExtractGitHubURL(candidates ...string) string {
	for _, text := range candidates {
		if text == "" {
			continue
		}
		for _, match := range githubPattern.FindAllString(text, -1) {
			if cleaned := strings.TrimRight(match, `).,;]"'`); cleaned != "" {
				return cleaned
			}
		}
	}
	return ""
}

// NormalizeImagePath drops everything up to and including a "static" path
// component, so paths recorded by the crawler become data-relative.
func NormalizeImagePath(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for i, part := range parts {
		if part == "static" {
			return strings.Join(parts[i+1:], "/")
		}
	}
	return raw
}

// VariantPath inserts suffix between the file stem and its extension
func VariantPath(rel, suffix string) string {
	dir, file := path.Split(filepath.ToSlash(rel))
	ext := path.Ext(file)
	return dir + strings.TrimSuffix(file, ext) + suffix + ext
}

// PDFLink returns the recorded PDF path or the arXiv abstract page
func PDFLink(p models.Paper) string {
	if p.PDFPath != "" {
		return p.PDFPath
	}
	return "https://arxiv.org/abs/" + p.ID
}

// Card derives the display fields of a paper read from the given day
func (s *Store) Card(p models.Paper, date string) *models.PaperCard {
	card := &models.PaperCard{
		Paper:     p,
		Date:      date,
		GitHubURL: ExtractGitHubURL(p.Comment, p.AbstractEN),
		PDFLink:   PDFLink(p),
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}
	if card.PubDate == "" {
		card.PubDate = date
	}

	image := NormalizeImagePath(p.ImagePath)
	card.ImagePath = image
	if image != "" {
		small := VariantPath(image, "_small")
		if !s.imageExists(small) {
			small = image
		}
		card.ImageURL = s.imageURL(image)
		card.ThumbFullURL = card.ImageURL
		card.ThumbSmallURL = s.imageURL(small)
	}
	return card
}

// Cards derives cards for every paper of one day
func (s *Store) Cards(papers []models.Paper, date string) []*models.PaperCard {
	cards := make([]*models.PaperCard, 0, len(papers))
	for _, p := range papers {
		cards = append(cards, s.Card(p, date))
	}
	return cards
}

// imageRel maps a normalized image path to a path below <data>/images.
// Absolute paths outside the data directory yield "".
func (s *Store) imageRel(image string) string {
	if filepath.IsAbs(image) {
		rel, err := filepath.Rel(s.dir, image)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return ""
		}
		image = rel
	}
	rel := strings.TrimPrefix(filepath.ToSlash(image), "./")
	return strings.TrimPrefix(rel, "images/")
}

func (s *Store) imageURL(image string) string {
	rel := s.imageRel(image)
	if rel == "" {
		return ""
	}
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return ImageRoute + strings.Join(segments, "/")
}

func (s *Store) imageExists(image string) bool {
	rel := s.imageRel(image)
	if rel == "" {
		return false
	}
	_, err := s.ImageFile(rel)
	return err == nil
}

// ImageFile resolves a request path below <data>/images to a file on disk.
// Paths escaping the images directory and missing files yield ErrImageNotFound.
func (s *Store) ImageFile(rel string) (string, error) {
	rel = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(rel)), "/")
	rel = strings.TrimPrefix(rel, "images/")
	if rel == "" || rel == "." {
		return "", ErrImageNotFound
	}

	root := filepath.Join(s.dir, "images")
	full := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrImageNotFound
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", ErrImageNotFound
	}
	return full, nil
}
