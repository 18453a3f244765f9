// Package component defines the Component Reference and Component
// Definition data model (spec.md section 3) and the Loader contract
// the Rig Model & Validator consumes to resolve references into
// definitions.
package component

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Reference is the "publisher.name.semver" triplet of spec.md
// section 3. Version is either an exact "x.y.z" or a caret-style
// compatibility constraint such as "^1.2.0".
type Reference struct {
	Publisher string `json:"publisher" yaml:"publisher"`
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
}

func (r Reference) String() string {
	return r.Publisher + "." + r.Name + "." + r.Version
}

// ParseReference parses a "publisher.name.version" string.
func ParseReference(s string) (Reference, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return Reference{}, errors.New("component: reference \"" + s + "\" is not publisher.name.version")
	}
	publisher, name, version := parts[0], parts[1], parts[2]
	if !nameRe.MatchString(publisher) {
		return Reference{}, errors.New("component: bad publisher \"" + publisher + "\"")
	}
	if !nameRe.MatchString(name) {
		return Reference{}, errors.New("component: bad name \"" + name + "\"")
	}
	if version == "" {
		return Reference{}, errors.New("component: missing version in \"" + s + "\"")
	}
	return Reference{Publisher: publisher, Name: name, Version: version}, nil
}

// IsConstraint reports whether the Reference's Version is a
// compatibility constraint (caret-style) rather than an exact
// version.
func (r Reference) IsConstraint() bool {
	return strings.HasPrefix(r.Version, "^")
}

// Satisfies reports whether loadedVersion (an exact "x.y.z") would
// satisfy r's version requirement: exact equality for an exact
// Version, or SemVer caret-compatibility (same major, or same minor
// pre-1.0) with loadedVersion no lower than the constraint's floor.
func (r Reference) Satisfies(loadedVersion string) (bool, error) {
	if !r.IsConstraint() {
		return r.Version == loadedVersion, nil
	}
	floor := strings.TrimPrefix(r.Version, "^")
	fv, lv := "v"+floor, "v"+loadedVersion
	if !semver.IsValid(fv) || !semver.IsValid(lv) {
		return false, errors.New("component: invalid semver comparing \"" + r.Version + "\" to \"" + loadedVersion + "\"")
	}
	if semver.Compare(lv, fv) < 0 {
		return false, nil
	}
	if semver.Major(fv) != "v0" {
		return semver.Major(fv) == semver.Major(lv), nil
	}
	// Pre-1.0: caret compatibility is minor-level.
	return semver.MajorMinor(fv) == semver.MajorMinor(lv), nil
}

// HighestSatisfying returns the highest version in loaded that
// satisfies r, or "" if none does.
func (r Reference) HighestSatisfying(loaded []string) (string, error) {
	best := ""
	for _, v := range loaded {
		ok, err := r.Satisfies(v)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if best == "" || semver.Compare("v"+v, "v"+best) > 0 {
			best = v
		}
	}
	return best, nil
}
