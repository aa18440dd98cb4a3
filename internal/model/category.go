package model

import (
	"path"
	"sort"
	"strings"
)

// Category is a coarse file type bucket used by the per-type breakdown.
type Category int

const (
	CatOther Category = iota
	CatMedia
	CatCode
	CatArchive
	CatDocument
	CatSystem
	CatExecutable
)

var categoryNames = [...]string{
	CatOther:      "Other",
	CatMedia:      "Media",
	CatCode:       "Code",
	CatArchive:    "Archives",
	CatDocument:   "Documents",
	CatSystem:     "System",
	CatExecutable: "Executables",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CatOther]
	}
	return categoryNames[c]
}

// Color returns the hex color used when rendering the category.
func (c Category) Color() string {
	switch c {
	case CatMedia:
		return "#E06C75"
	case CatCode:
		return "#61AFEF"
	case CatArchive:
		return "#E5C07B"
	case CatDocument:
		return "#98C379"
	case CatSystem:
		return "#C678DD"
	case CatExecutable:
		return "#D19A66"
	default:
		return "#ABB2BF"
	}
}

var extCategories = func() map[string]Category {
	groups := map[Category]string{
		CatMedia: ".jpg .jpeg .png .gif .bmp .svg .webp .ico .tiff .tif .psd .raw .heic .avif " +
			".mp4 .mkv .avi .mov .wmv .flv .webm .m4v .mpg .mpeg " +
			".mp3 .flac .wav .aac .ogg .m4a .opus .mid",
		CatCode: ".go .py .js .jsx .ts .tsx .rs .c .cpp .cc .h .hpp .java .kt .swift .rb .php .cs " +
			".scala .ex .exs .hs .lua .dart .vue .svelte .html .css .scss .sql .sh .bash .zsh " +
			".json .yaml .yml .toml .xml .proto",
		CatArchive: ".zip .tar .gz .bz2 .xz .zst .lz4 .rar .7z .iso .dmg .deb .rpm .tgz .jar",
		CatDocument: ".pdf .doc .docx .xls .xlsx .ppt .pptx .odt .ods .rtf .txt .md .rst .tex " +
			".csv .tsv .epub",
		CatSystem: ".log .bak .tmp .swp .pid .lock .cache .dat .db .sqlite .sqlite3 .ini .cfg " +
			".conf .dll .dylib .so",
		CatExecutable: ".exe .msi .bin .elf .out .wasm .pyc .class .o .a",
	}
	m := make(map[string]Category)
	for cat, exts := range groups {
		for _, ext := range strings.Fields(exts) {
			m[ext] = cat
		}
	}
	return m
}()

// ClassifyFile returns the category for a file name.
func ClassifyFile(name string) Category {
	if cat, ok := extCategories[strings.ToLower(path.Ext(name))]; ok {
		return cat
	}
	return CatOther
}

// CategoryTotal aggregates the files of one category.
type CategoryTotal struct {
	Category Category
	Files    int64
	Size     int64
}

// BreakdownByCategory sums file entries per category, largest first.
// Directory entries are ignored.
func BreakdownByCategory(entries []Entry) []CategoryTotal {
	totals := make(map[Category]*CategoryTotal)
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		cat := ClassifyFile(e.Name)
		t, ok := totals[cat]
		if !ok {
			t = &CategoryTotal{Category: cat}
			totals[cat] = t
		}
		t.Files++
		t.Size = saturatingAddInt64(t.Size, e.Size)
	}
	out := make([]CategoryTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Category < out[j].Category
	})
	return out
}
