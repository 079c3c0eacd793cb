package classmgr

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("jload.classmgr")
