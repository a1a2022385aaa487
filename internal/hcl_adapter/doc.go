// Package hcl_adapter loads runbooks written in HCL.
//
// A file holds one `runbook` block and any number of `variable` blocks.
// Operations nest as blocks named after their kind:
//
//	variable "service" {
//	  default = "nginx"
//	}
//
//	runbook "restart-service" {
//	  multi_node {
//	    targets = ["web1", "web2"]
//
//	    if_else {
//	      decision {
//	        condition = "${var.service} is not running"
//	        exec { command = "systemctl is-active ${var.service}" }
//	      }
//	      then {
//	        exec {
//	          command = "systemctl restart ${var.service}"
//	          timeout = "60s"
//	        }
//	      }
//	    }
//	  }
//	}
//
// Blocks keep their source order. Attributes may reference variables as
// var.<name> and call a small set of string functions.
package hcl_adapter
