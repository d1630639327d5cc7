package stack

import (
	"fmt"

	"github.com/pangeo-forge/aws-bakery/internal/cfn"
	"github.com/pangeo-forge/aws-bakery/internal/config"
)

// subnetCIDRs carves the VPC /16 into one /18 per availability zone.
var subnetCIDRs = []string{"10.0.0.0/18", "10.0.64.0/18", "10.0.128.0/18"}

// addNetwork declares the public-only VPC: no NAT gateways, agent tasks get
// public IPs and reach Prefect Cloud through the internet gateway.
func addNetwork(t *cfn.Template, cfg *config.Config) {
	t.Add("Vpc", cfn.Resource{
		Type: "AWS::EC2::VPC",
		Properties: map[string]interface{}{
			"CidrBlock":          "10.0.0.0/16",
			"EnableDnsSupport":   true,
			"EnableDnsHostnames": true,
			"Tags": []map[string]interface{}{
				{"Key": "Name", "Value": "bakery-vpc-" + cfg.Identifier},
			},
		},
	})

	t.Add("InternetGateway", cfn.Resource{
		Type: "AWS::EC2::InternetGateway",
		Properties: map[string]interface{}{
			"Tags": []map[string]interface{}{
				{"Key": "Name", "Value": "bakery-igw-" + cfg.Identifier},
			},
		},
	})

	t.Add("GatewayAttachment", cfn.Resource{
		Type: "AWS::EC2::VPCGatewayAttachment",
		Properties: map[string]interface{}{
			"VpcId":             cfn.Ref("Vpc"),
			"InternetGatewayId": cfn.Ref("InternetGateway"),
		},
	})

	t.Add("PublicRouteTable", cfn.Resource{
		Type: "AWS::EC2::RouteTable",
		Properties: map[string]interface{}{
			"VpcId": cfn.Ref("Vpc"),
		},
	})

	// The default route must wait for the gateway attachment or stack
	// creation fails with a dangling gateway reference.
	t.Add("PublicRoute", cfn.Resource{
		Type:      "AWS::EC2::Route",
		DependsOn: []string{"GatewayAttachment"},
		Properties: map[string]interface{}{
			"RouteTableId":         cfn.Ref("PublicRouteTable"),
			"DestinationCidrBlock": "0.0.0.0/0",
			"GatewayId":            cfn.Ref("InternetGateway"),
		},
	})

	for i, cidr := range subnetCIDRs {
		subnetID := fmt.Sprintf("PublicSubnet%d", i+1)
		t.Add(subnetID, cfn.Resource{
			Type: "AWS::EC2::Subnet",
			Properties: map[string]interface{}{
				"VpcId":               cfn.Ref("Vpc"),
				"CidrBlock":           cidr,
				"AvailabilityZone":    cfn.Select(i, cfn.GetAZs()),
				"MapPublicIpOnLaunch": true,
				"Tags": []map[string]interface{}{
					{"Key": "Name", "Value": fmt.Sprintf("bakery-public-%d-%s", i+1, cfg.Identifier)},
				},
			},
		})
		t.Add(subnetID+"RouteTableAssociation", cfn.Resource{
			Type: "AWS::EC2::SubnetRouteTableAssociation",
			Properties: map[string]interface{}{
				"SubnetId":     cfn.Ref(subnetID),
				"RouteTableId": cfn.Ref("PublicRouteTable"),
			},
		})
	}

	t.Add("LoadBalancerSecurityGroup", cfn.Resource{
		Type: "AWS::EC2::SecurityGroup",
		Properties: map[string]interface{}{
			"GroupDescription": "Public ingress to the agent load balancer",
			"VpcId":            cfn.Ref("Vpc"),
			"SecurityGroupIngress": []map[string]interface{}{
				{
					"IpProtocol": "tcp",
					"FromPort":   80,
					"ToPort":     80,
					"CidrIp":     "0.0.0.0/0",
				},
			},
		},
	})

	// Agent tasks accept traffic only from the load balancer group.
	t.Add("AgentSecurityGroup", cfn.Resource{
		Type: "AWS::EC2::SecurityGroup",
		Properties: map[string]interface{}{
			"GroupDescription": "Agent task ingress from the load balancer",
			"VpcId":            cfn.Ref("Vpc"),
			"SecurityGroupIngress": []map[string]interface{}{
				{
					"IpProtocol":            "tcp",
					"FromPort":              agentPort,
					"ToPort":                agentPort,
					"SourceSecurityGroupId": cfn.Ref("LoadBalancerSecurityGroup"),
				},
			},
		},
	})
}

func subnetRefs() []interface{} {
	refs := make([]interface{}, 0, len(subnetCIDRs))
	for i := range subnetCIDRs {
		refs = append(refs, cfn.Ref(fmt.Sprintf("PublicSubnet%d", i+1)))
	}
	return refs
}
