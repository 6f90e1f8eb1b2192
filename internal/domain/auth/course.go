package auth

import "regexp"

// courseRe matches course-shaped group memberships such as CMPT-474, MATH100 or CMPT120-d1.
var courseRe = regexp.MustCompile(`^(?:[a-zA-Z]+-\d{3})$|^(?:[a-zA-Z]+\d{3}(?:-\w+)?)$`)

// IsCourse reports whether membership names a course offering.
func IsCourse(membership string) bool {
	return courseRe.MatchString(membership)
}

// FilterCourses keeps only course-shaped memberships, preserving order.
func FilterCourses(memberships []string) []string {
	courses := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if IsCourse(m) {
			courses = append(courses, m)
		}
	}
	return courses
}
