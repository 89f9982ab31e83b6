// Package report aggregates the stages of a workflow run into the single
// structured result returned to callers.
//
// A Builder collects log entries in execution order and records exactly one
// verdict. The verdict is never changed once set, so a later cleanup
// problem cannot overwrite it; cleanup problems are carried separately in
// CleanupIncomplete.
//
//	b := report.NewBuilder(0)
//	b.AppendResult("init", initResult)
//	if !initResult.Succeeded {
//	    return b.Fail("Terraform init failed")
//	}
//	return b.Succeed("Terraform plan completed")
package report
