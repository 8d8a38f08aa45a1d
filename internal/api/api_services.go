/*
Copyright (c) 2025 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package api

// Service is the fully qualified name of a gRPC service of the Kubeapps APIs server, for example
// `kubeappsapis.core.packages.v1alpha1.PackagesService`.
type Service string

// String returns the fully qualified name of the service.
func (s Service) String() string {
	return string(s)
}

// Method returns the full gRPC method name for the given method of this service, including the leading slash. For
// example, for the `CreateInstalledPackage` method of the core packages service it returns
// `/kubeappsapis.core.packages.v1alpha1.PackagesService/CreateInstalledPackage`.
func (s Service) Method(name string) string {
	return "/" + string(s) + "/" + name
}

// Core services:
const (
	PackagesService     Service = "kubeappsapis.core.packages.v1alpha1.PackagesService"
	RepositoriesService Service = "kubeappsapis.core.packages.v1alpha1.RepositoriesService"
	PluginsService      Service = "kubeappsapis.core.plugins.v1alpha1.PluginsService"
)

// Resources service:
const (
	ResourcesService Service = "kubeappsapis.plugins.resources.v1alpha1.ResourcesService"
)

// Packages and repositories services of the backend plugins:
const (
	HelmPackagesService               Service = "kubeappsapis.plugins.helm.packages.v1alpha1.HelmPackagesService"
	HelmRepositoriesService           Service = "kubeappsapis.plugins.helm.packages.v1alpha1.HelmRepositoriesService"
	KappControllerPackagesService     Service = "kubeappsapis.plugins.kapp_controller.packages.v1alpha1.KappControllerPackagesService"
	KappControllerRepositoriesService Service = "kubeappsapis.plugins.kapp_controller.packages.v1alpha1.KappControllerRepositoriesService"
	FluxV2PackagesService             Service = "kubeappsapis.plugins.fluxv2.packages.v1alpha1.FluxV2PackagesService"
	FluxV2RepositoriesService         Service = "kubeappsapis.plugins.fluxv2.packages.v1alpha1.FluxV2RepositoriesService"
)

// Services returns the list of all the services known by the client.
func Services() []Service {
	return []Service{
		PackagesService,
		RepositoriesService,
		PluginsService,
		ResourcesService,
		HelmPackagesService,
		HelmRepositoriesService,
		KappControllerPackagesService,
		KappControllerRepositoriesService,
		FluxV2PackagesService,
		FluxV2RepositoriesService,
	}
}
