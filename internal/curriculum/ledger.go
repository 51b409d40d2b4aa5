package curriculum

import "github.com/noah-isme/curriculum-api/internal/models"

// FilterAudit returns entries matching filter, preserving most-recent-first order.
func FilterAudit(entries []models.AuditLogEntry, filter models.AuditFilter) []models.AuditLogEntry {
	out := make([]models.AuditLogEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityID != "" && entry.EntityID != filter.EntityID {
			continue
		}
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// FilterReports returns reports in the given status; an empty status returns all of them.
func FilterReports(reports []models.CurriculumReport, status models.ReportStatus) []models.CurriculumReport {
	out := make([]models.CurriculumReport, 0, len(reports))
	for _, r := range reports {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// HasPendingReport tells display layers whether reporterID already has an open report on curriculumID.
func HasPendingReport(reports []models.CurriculumReport, reporterID, curriculumID string) bool {
	for _, r := range reports {
		if r.ReporterID == reporterID && r.CurriculumID == curriculumID && r.Status == models.ReportStatusPending {
			return true
		}
	}
	return false
}

// FindItem looks a curriculum record up by id.
func FindItem(items []models.CurriculumStandard, id string) (models.CurriculumStandard, bool) {
	if idx := indexOf(items, id); idx >= 0 {
		return items[idx].Clone(), true
	}
	return models.CurriculumStandard{}, false
}
