// Package scorm bridges SCORM 1.2 SCOs into standalone HTML bundles.
//
// An Injector rewrites an entry page so it loads a SCORM runtime and a small
// handler script that keeps learner state in localStorage; InstallAssets
// places both scripts beside the page under AssetDir.
package scorm
