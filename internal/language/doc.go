// Package language maps the language codes the mobile app sends (two-letter
// codes, three-letter codes, English names, full BCP 47 tags) onto the set of
// languages the advisory backend answers in.
package language
