package admissions

// Extracted field names, in canonical output order.
const (
	FieldCourses                = "courses"
	FieldCourseDescriptions     = "course_descriptions"
	FieldAdmissionsRequirements = "admissions_requirements"
	FieldApplicationDeadlines   = "application_deadlines"
	FieldEarlyAdmission         = "early_admission"
	FieldRegularAdmission       = "regular_admission"
)

// Extraction sources recorded per field in AdmissionsRecord.FieldSources.
const (
	SourceCSS     = "css"
	SourceLLM     = "llm"
	SourceKeyword = "keyword"
	SourceNone    = "none"
)

var fieldNames = []string{
	FieldCourses,
	FieldCourseDescriptions,
	FieldAdmissionsRequirements,
	FieldApplicationDeadlines,
	FieldEarlyAdmission,
	FieldRegularAdmission,
}

// FieldNames returns every extracted field name in canonical order. The
// returned slice is a copy.
func FieldNames() []string {
	names := make([]string, len(fieldNames))
	copy(names, fieldNames)
	return names
}

// FieldCap returns the maximum number of entries kept for a field.
func FieldCap(field string) int {
	switch field {
	case FieldEarlyAdmission, FieldRegularAdmission:
		return 5
	default:
		return 10
	}
}

// SentinelList returns a fresh singleton sentinel slice.
func SentinelList() []string {
	return []string{Sentinel}
}

// IsSentinel reports whether a field value is the not-found placeholder.
func IsSentinel(values []string) bool {
	return len(values) == 0 || values[0] == Sentinel
}

// Field returns the named list field of the record, or nil for unknown names.
func (r *AdmissionsRecord) Field(name string) []string {
	switch name {
	case FieldCourses:
		return r.Courses
	case FieldCourseDescriptions:
		return r.CourseDescriptions
	case FieldAdmissionsRequirements:
		return r.AdmissionsRequirements
	case FieldApplicationDeadlines:
		return r.ApplicationDeadlines
	case FieldEarlyAdmission:
		return r.EarlyAdmission
	case FieldRegularAdmission:
		return r.RegularAdmission
	default:
		return nil
	}
}

// SetField stores the named list field on the record. Unknown names are
// ignored.
func (r *AdmissionsRecord) SetField(name string, values []string) {
	switch name {
	case FieldCourses:
		r.Courses = values
	case FieldCourseDescriptions:
		r.CourseDescriptions = values
	case FieldAdmissionsRequirements:
		r.AdmissionsRequirements = values
	case FieldApplicationDeadlines:
		r.ApplicationDeadlines = values
	case FieldEarlyAdmission:
		r.EarlyAdmission = values
	case FieldRegularAdmission:
		r.RegularAdmission = values
	}
}
